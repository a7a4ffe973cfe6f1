package update

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	apperrors "insdesk/internal/errors"
)

// DefaultBinaryName is the executable name looked up inside release archives.
const DefaultBinaryName = "insdesk"

var gzipMagic = []byte{0x1f, 0x8b}

// Applier installs a verified artifact over the running executable.
type Applier interface {
	Install(artifactPath string) error
}

// BinaryInstaller replaces the running executable with a downloaded build,
// keeping a backup next to it so a failed swap can be undone.
type BinaryInstaller struct {
	binaryName string
	execPath   string
}

// InstallerOption configures a BinaryInstaller.
type InstallerOption func(*BinaryInstaller)

// WithExecutablePath overrides the executable that gets replaced.
func WithExecutablePath(path string) InstallerOption {
	return func(i *BinaryInstaller) {
		i.execPath = path
	}
}

// WithBinaryName sets the file name searched for in tar.gz artifacts.
func WithBinaryName(name string) InstallerOption {
	return func(i *BinaryInstaller) {
		i.binaryName = name
	}
}

// NewBinaryInstaller creates an installer for the running executable.
func NewBinaryInstaller(opts ...InstallerOption) *BinaryInstaller {
	i := &BinaryInstaller{binaryName: DefaultBinaryName}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install swaps artifactPath into place. The artifact may be the raw
// executable or a .tar.gz containing it.
func (i *BinaryInstaller) Install(artifactPath string) error {
	execPath, err := i.resolveExecutable()
	if err != nil {
		return apperrors.New(apperrors.CodeInstallFailed, "resolve executable", err)
	}
	if err := checkWritePermission(execPath); err != nil {
		return apperrors.New(apperrors.CodeInstallFailed, "permission denied", err)
	}

	staged, err := i.stage(artifactPath, execPath)
	if err != nil {
		return apperrors.New(apperrors.CodeInstallFailed, "stage new binary", err)
	}
	defer func() { _ = os.Remove(staged) }()

	backupPath := execPath + ".backup"
	_ = os.Remove(backupPath)
	if err := os.Rename(execPath, backupPath); err != nil {
		return apperrors.New(apperrors.CodeInstallFailed, "backup current binary", err)
	}

	if err := os.Rename(staged, execPath); err != nil {
		_ = os.Rename(backupPath, execPath)
		return apperrors.New(apperrors.CodeInstallFailed, "install new binary", err)
	}

	//nolint:gosec // G302: binary needs to be executable
	if err := os.Chmod(execPath, 0755); err != nil {
		_ = os.Remove(execPath)
		_ = os.Rename(backupPath, execPath)
		return apperrors.New(apperrors.CodeInstallFailed, "set executable permission", err)
	}
	return nil
}

// Rollback restores the previous version from backup.
func (i *BinaryInstaller) Rollback() error {
	execPath, err := i.resolveExecutable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	backupPath := execPath + ".backup"
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup found at %s", backupPath)
	}
	if err := os.Rename(backupPath, execPath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	return nil
}

// HasBackup reports whether a previous executable is kept next to the current one.
func (i *BinaryInstaller) HasBackup() bool {
	execPath, err := i.resolveExecutable()
	if err != nil {
		return false
	}
	_, err = os.Stat(execPath + ".backup")
	return err == nil
}

// CleanupBackup removes the backup left by the last install.
// Windows keeps the file locked until the old process exits, so failures
// there are expected until the next launch.
func (i *BinaryInstaller) CleanupBackup() error {
	execPath, err := i.resolveExecutable()
	if err != nil {
		return err
	}
	err = os.Remove(execPath + ".backup")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (i *BinaryInstaller) resolveExecutable() (string, error) {
	if i.execPath != "" {
		return i.execPath, nil
	}
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return execPath, nil
}

// stage copies (or extracts) the artifact next to the executable so the final
// rename never crosses filesystems.
func (i *BinaryInstaller) stage(artifactPath, execPath string) (string, error) {
	//nolint:gosec // G304: artifact path is a temp file we created
	f, err := os.Open(artifactPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	head, _ := br.Peek(len(gzipMagic))

	stagedPath := execPath + ".new"
	if bytes.Equal(head, gzipMagic) {
		tmpDir, err := os.MkdirTemp(filepath.Dir(execPath), ".insdesk-update-*")
		if err != nil {
			return "", fmt.Errorf("create temp directory: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()

		extracted, err := extractTarball(br, tmpDir, i.binaryName)
		if err != nil {
			return "", err
		}
		if err := os.Rename(extracted, stagedPath); err != nil {
			return "", fmt.Errorf("stage extracted binary: %w", err)
		}
		return stagedPath, nil
	}

	//nolint:gosec // G302: binary needs to be executable
	out, err := os.OpenFile(stagedPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("create staged binary: %w", err)
	}
	if _, err := io.Copy(out, br); err != nil {
		_ = out.Close()
		_ = os.Remove(stagedPath)
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(stagedPath)
		return "", fmt.Errorf("close staged binary: %w", err)
	}
	return stagedPath, nil
}

// extractTarball extracts the named binary from a .tar.gz stream.
func extractTarball(r io.Reader, destDir, binaryName string) (string, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("create gzip reader: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	wanted := map[string]bool{binaryName: true}
	if runtime.GOOS == "windows" && !strings.HasSuffix(binaryName, ".exe") {
		wanted[binaryName+".exe"] = true
	}

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(header.Name)
		if !wanted[name] {
			continue
		}

		destPath := filepath.Join(destDir, name)
		//nolint:gosec // G304: extracting to temp directory we control
		outFile, err := os.Create(destPath)
		if err != nil {
			return "", fmt.Errorf("create file: %w", err)
		}
		//nolint:gosec // G110: release artifacts are signature-verified before extraction
		if _, err := io.Copy(outFile, tr); err != nil {
			_ = outFile.Close()
			return "", fmt.Errorf("extract file: %w", err)
		}
		_ = outFile.Close()

		//nolint:gosec // G302: binary needs to be executable
		if err := os.Chmod(destPath, 0755); err != nil {
			return "", fmt.Errorf("chmod: %w", err)
		}
		return destPath, nil
	}
	return "", fmt.Errorf("binary %q not found in archive", binaryName)
}

// checkWritePermission verifies the current process can write next to path.
func checkWritePermission(path string) error {
	testFile := filepath.Join(filepath.Dir(path), ".insdesk-update-test")

	//nolint:gosec // G304: path is constructed from the binary directory
	f, err := os.Create(testFile)
	if err != nil {
		return err
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return nil
}
