package update

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"insdesk/internal/debug"
	apperrors "insdesk/internal/errors"
)

// DefaultManifestTimeout bounds the manifest request. Artifact downloads are
// bounded only by the caller's context.
const DefaultManifestTimeout = 10 * time.Second

const downloadChunkSize = 32 * 1024

var manifestLog = debug.L("manifest")

// Manifest is the update document published alongside each release.
type Manifest struct {
	Version   string                      `json:"version"`
	Notes     string                      `json:"notes"`
	PubDate   string                      `json:"pub_date"`
	Platforms map[string]ManifestPlatform `json:"platforms"`
}

// ManifestPlatform locates the signed artifact for one os/arch pair.
type ManifestPlatform struct {
	URL       string `json:"url"`
	Signature string `json:"signature"`
}

// ManifestProvider checks a signed update manifest and installs the artifact
// it points to.
type ManifestProvider struct {
	manifestURL    string
	publicKey      string
	currentVersion string
	platform       string
	httpClient     *http.Client
	installer      Applier
	relaunch       func() error
}

// ManifestOption configures a ManifestProvider.
type ManifestOption func(*ManifestProvider)

// WithManifestHTTPClient sets the client used for the manifest and artifact.
func WithManifestHTTPClient(client *http.Client) ManifestOption {
	return func(p *ManifestProvider) {
		p.httpClient = client
	}
}

// WithInstaller replaces the default BinaryInstaller.
func WithInstaller(a Applier) ManifestOption {
	return func(p *ManifestProvider) {
		p.installer = a
	}
}

// WithRelauncher replaces the process relaunch step.
func WithRelauncher(fn func() error) ManifestOption {
	return func(p *ManifestProvider) {
		p.relaunch = fn
	}
}

// WithPlatformKey overrides the detected "<os>-<arch>" manifest key.
func WithPlatformKey(key string) ManifestOption {
	return func(p *ManifestProvider) {
		p.platform = key
	}
}

// NewManifestProvider creates a provider for the running build.
// publicKey is the base64-encoded ed25519 key artifacts are signed with.
func NewManifestProvider(manifestURL, publicKey, currentVersion string, opts ...ManifestOption) *ManifestProvider {
	p := &ManifestProvider{
		manifestURL:    strings.TrimSpace(manifestURL),
		publicKey:      strings.TrimSpace(publicKey),
		currentVersion: currentVersion,
		platform:       PlatformKey(runtime.GOOS, runtime.GOARCH),
		httpClient:     &http.Client{},
		installer:      NewBinaryInstaller(),
		relaunch:       Relaunch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlatformKey maps Go's GOOS/GOARCH onto manifest platform names.
// It returns "" for combinations no release is built for.
func PlatformKey(goos, goarch string) string {
	switch goos {
	case "linux", "darwin", "windows":
	default:
		return ""
	}
	var arch string
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	case "arm":
		arch = "armv7"
	default:
		return ""
	}
	return goos + "-" + arch
}

// Check fetches the manifest and reports whether it describes a newer build.
func (p *ManifestProvider) Check(ctx context.Context) (*Handle, error) {
	if p.platform == "" {
		return nil, apperrors.New(apperrors.CodeUnsupportedPlatform,
			fmt.Sprintf("no release for %s/%s", runtime.GOOS, runtime.GOARCH), nil)
	}
	if _, err := decodePublicKey(p.publicKey); err != nil {
		return nil, apperrors.New(apperrors.CodeSignatureInvalid, "update public key", err)
	}

	m, err := p.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	version := NormalizeVersion(m.Version)
	if version == "" {
		return nil, apperrors.New(apperrors.CodeManifestInvalid, "manifest has no version", nil)
	}
	if Compare(version, p.currentVersion) <= 0 {
		manifestLog.Logf("up to date: current=%s manifest=%s", p.currentVersion, version)
		return nil, nil
	}

	platform, ok := m.Platforms[p.platform]
	if !ok {
		return nil, apperrors.New(apperrors.CodeManifestInvalid,
			fmt.Sprintf("manifest has no entry for %s", p.platform), nil)
	}
	if strings.TrimSpace(platform.URL) == "" {
		return nil, apperrors.New(apperrors.CodeManifestInvalid,
			fmt.Sprintf("manifest entry for %s has no url", p.platform), nil)
	}
	if _, err := decodeSignature(platform.Signature); err != nil {
		return nil, apperrors.New(apperrors.CodeSignatureInvalid,
			fmt.Sprintf("manifest entry for %s", p.platform), err)
	}

	return &Handle{
		Version: version,
		Notes:   m.Notes,
		Date:    m.PubDate,
		artifact: artifact{
			url:       strings.TrimSpace(platform.URL),
			signature: strings.TrimSpace(platform.Signature),
		},
	}, nil
}

func (p *ManifestProvider) fetchManifest(ctx context.Context) (*Manifest, error) {
	if p.manifestURL == "" {
		return nil, apperrors.New(apperrors.CodeConfigurationError, "update manifest url not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultManifestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.manifestURL, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeUpdateCheckFailed, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "insdesk-updater")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeUpdateCheckFailed, "fetch manifest", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.CodeUpdateCheckFailed,
			fmt.Sprintf("fetch manifest: status %d", resp.StatusCode), nil)
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&m); err != nil {
		return nil, apperrors.New(apperrors.CodeManifestInvalid, "decode manifest", err)
	}
	return &m, nil
}

// DownloadAndApply downloads the artifact for h, verifies its signature,
// installs it and relaunches. With the default relauncher it does not return
// on success.
func (p *ManifestProvider) DownloadAndApply(ctx context.Context, h *Handle, onEvent func(Event)) error {
	if h == nil || h.artifact.url == "" {
		return apperrors.New(apperrors.CodeDownloadFailed, "update handle has no artifact", nil)
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	pub, err := decodePublicKey(p.publicKey)
	if err != nil {
		return apperrors.New(apperrors.CodeSignatureInvalid, "update public key", err)
	}
	sig, err := decodeSignature(h.artifact.signature)
	if err != nil {
		return apperrors.New(apperrors.CodeSignatureInvalid, "artifact signature", err)
	}

	path, err := p.download(ctx, h.artifact.url, onEvent)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(path) }()

	if err := verifyArtifact(path, pub, sig); err != nil {
		return err
	}
	manifestLog.Logf("artifact for %s verified, installing", h.Version)

	if err := p.installer.Install(path); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			return apperrors.New(apperrors.CodeInstallFailed, "install update", err)
		}
		return err
	}
	onEvent(EventFinished{})

	if err := p.relaunch(); err != nil {
		return apperrors.New(apperrors.CodeRelaunchFailed, "relaunch", err)
	}
	return nil
}

func (p *ManifestProvider) download(ctx context.Context, url string, onEvent func(Event)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.New(apperrors.CodeDownloadFailed, "create request", err)
	}
	req.Header.Set("User-Agent", "insdesk-updater")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperrors.New(apperrors.CodeDownloadFailed, "download artifact", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.New(apperrors.CodeDownloadFailed,
			fmt.Sprintf("download artifact: status %d", resp.StatusCode), nil)
	}

	f, err := os.CreateTemp("", "insdesk-update-*")
	if err != nil {
		return "", apperrors.New(apperrors.CodeDownloadFailed, "create temp file", err)
	}
	path := f.Name()
	fail := func(msg string, err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return "", apperrors.New(apperrors.CodeDownloadFailed, msg, err)
	}

	onEvent(EventStarted{ContentLength: resp.ContentLength})

	buf := make([]byte, downloadChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fail("write artifact", err)
			}
			onEvent(EventProgress{ChunkLength: int64(n)})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail("read artifact", rerr)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", apperrors.New(apperrors.CodeDownloadFailed, "close artifact", err)
	}
	return path, nil
}

func verifyArtifact(path string, pub ed25519.PublicKey, sig []byte) error {
	//nolint:gosec // G304: path is a temp file we created
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.New(apperrors.CodeDownloadFailed, "read artifact", err)
	}
	if !ed25519.Verify(pub, data, sig) {
		return apperrors.New(apperrors.CodeSignatureInvalid, "artifact signature does not match", nil)
	}
	return nil
}

func decodePublicKey(s string) (ed25519.PublicKey, error) {
	if s == "" {
		return nil, fmt.Errorf("not configured")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("want %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func decodeSignature(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("signature: want %d bytes, got %d", ed25519.SignatureSize, len(raw))
	}
	return raw, nil
}
