package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Default configuration values for the release feed.
const (
	DefaultRepoOwner   = "QHanh"
	DefaultRepoName    = "INS_Automation_Platform"
	DefaultFeedTimeout = 5 * time.Second
	defaultGitHubAPI   = "https://api.github.com"
)

// Error variables for specific feed failures.
var (
	ErrNetworkFailure = fmt.Errorf("network request failed")
	ErrRateLimited    = fmt.Errorf("rate limited by GitHub API")
)

// ReleaseInfo is the subset of a GitHub release the feed reads.
type ReleaseInfo struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
}

// Version returns the release version without the tag prefix,
// falling back to the release name when the tag is empty.
func (r ReleaseInfo) Version() string {
	if v := NormalizeVersion(r.TagName); v != "" {
		return v
	}
	return strings.TrimSpace(r.Name)
}

// BackendVersion returns the backend version mentioned in the release notes.
func (r ReleaseInfo) BackendVersion() (string, bool) {
	return ExtractBackendVersion(r.Body)
}

// ReleaseFeed reads the latest published release. It is a secondary,
// best-effort metadata source; the coordinator never lets its failures
// reach VersionStatus.Error.
type ReleaseFeed struct {
	owner      string
	repo       string
	token      string
	baseURL    string
	httpClient *http.Client
}

// FeedOption configures a ReleaseFeed.
type FeedOption func(*ReleaseFeed)

// WithFeedHTTPClient sets a custom HTTP client for the feed.
func WithFeedHTTPClient(client *http.Client) FeedOption {
	return func(f *ReleaseFeed) {
		f.httpClient = client
	}
}

// WithFeedBaseURL points the feed at a different API root.
func WithFeedBaseURL(url string) FeedOption {
	return func(f *ReleaseFeed) {
		f.baseURL = strings.TrimRight(url, "/")
	}
}

// WithFeedToken authenticates requests, needed for private repositories.
func WithFeedToken(token string) FeedOption {
	return func(f *ReleaseFeed) {
		f.token = strings.TrimSpace(token)
	}
}

// NewReleaseFeed creates a feed for the given repository.
func NewReleaseFeed(owner, repo string, opts ...FeedOption) *ReleaseFeed {
	f := &ReleaseFeed{
		owner:   owner,
		repo:    repo,
		baseURL: defaultGitHubAPI,
		httpClient: &http.Client{
			Timeout: DefaultFeedTimeout,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Latest fetches the latest release.
func (f *ReleaseFeed) Latest(ctx context.Context) (*ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", f.baseURL, f.owner, f.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "insdesk-update-checker")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &release, nil
}

var backendNoteRegex = regexp.MustCompile(`(?i)backend[:\s]+v?(\d+\.\d+\.\d+)`)

// ExtractBackendVersion finds a "backend: vX.Y.Z" mention in free-text release
// notes. It is a heuristic: no match is reported as ("", false), never an error.
func ExtractBackendVersion(notes string) (string, bool) {
	m := backendNoteRegex.FindStringSubmatch(notes)
	if m == nil {
		return "", false
	}
	return m[1], true
}
