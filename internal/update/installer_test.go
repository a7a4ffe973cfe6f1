package update

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "insdesk/internal/errors"
)

func writeTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for name, content := range files {
		hdr := &tar.Header{
			Name:     name,
			Mode:     0755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func setupExecutable(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "insdesk")
	if err := os.WriteFile(exe, []byte(content), 0755); err != nil {
		t.Fatalf("write executable: %v", err)
	}
	return exe
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestCheckWritePermission(t *testing.T) {
	tmpDir := t.TempDir()
	if err := checkWritePermission(filepath.Join(tmpDir, "insdesk")); err != nil {
		t.Errorf("checkWritePermission() in temp dir: %v", err)
	}
	if err := checkWritePermission(filepath.Join(tmpDir, "missing", "insdesk")); err == nil {
		t.Error("checkWritePermission() should fail for a missing directory")
	}
}

func TestInstallRawBinary(t *testing.T) {
	exe := setupExecutable(t, "old build")
	artifact := filepath.Join(t.TempDir(), "download")
	if err := os.WriteFile(artifact, []byte("new build"), 0600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	inst := NewBinaryInstaller(WithExecutablePath(exe))
	if err := inst.Install(artifact); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if got := readFile(t, exe); got != "new build" {
		t.Errorf("executable content = %q, want new build", got)
	}
	if got := readFile(t, exe+".backup"); got != "old build" {
		t.Errorf("backup content = %q, want old build", got)
	}
	info, err := os.Stat(exe)
	if err != nil {
		t.Fatalf("stat executable: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("executable mode = %v, want owner execute bit", info.Mode())
	}
	if _, err := os.Stat(exe + ".new"); !os.IsNotExist(err) {
		t.Error("staged file should be removed after install")
	}
}

func TestInstallTarball(t *testing.T) {
	exe := setupExecutable(t, "old build")
	archive := writeTarball(t, map[string]string{
		"insdesk_0.3.0_linux_x86_64/README.md": "docs",
		"insdesk_0.3.0_linux_x86_64/insdesk":   "new build",
	})
	artifact := filepath.Join(t.TempDir(), "download")
	if err := os.WriteFile(artifact, archive, 0600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	inst := NewBinaryInstaller(WithExecutablePath(exe))
	if err := inst.Install(artifact); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if got := readFile(t, exe); got != "new build" {
		t.Errorf("executable content = %q, want new build", got)
	}

	entries, err := os.ReadDir(filepath.Dir(exe))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".insdesk-update-") {
			t.Errorf("leftover temp entry %s", e.Name())
		}
	}
}

func TestInstallTarballWithoutBinaryKeepsExecutable(t *testing.T) {
	exe := setupExecutable(t, "old build")
	archive := writeTarball(t, map[string]string{"README.md": "docs"})
	artifact := filepath.Join(t.TempDir(), "download")
	if err := os.WriteFile(artifact, archive, 0600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	err := NewBinaryInstaller(WithExecutablePath(exe)).Install(artifact)
	if !apperrors.IsCode(err, apperrors.CodeInstallFailed) {
		t.Fatalf("Install() error = %v, want install_failed", err)
	}
	if got := readFile(t, exe); got != "old build" {
		t.Errorf("executable content = %q, want untouched old build", got)
	}
}

func TestInstallMissingArtifact(t *testing.T) {
	exe := setupExecutable(t, "old build")
	err := NewBinaryInstaller(WithExecutablePath(exe)).Install(filepath.Join(t.TempDir(), "nope"))
	if !apperrors.IsCode(err, apperrors.CodeInstallFailed) {
		t.Fatalf("Install() error = %v, want install_failed", err)
	}
	if got := readFile(t, exe); got != "old build" {
		t.Errorf("executable content = %q, want untouched old build", got)
	}
}

func TestRollback(t *testing.T) {
	exe := setupExecutable(t, "old build")
	artifact := filepath.Join(t.TempDir(), "download")
	if err := os.WriteFile(artifact, []byte("new build"), 0600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	inst := NewBinaryInstaller(WithExecutablePath(exe))
	if err := inst.Install(artifact); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if !inst.HasBackup() {
		t.Fatal("HasBackup() = false after install")
	}
	if err := inst.Rollback(); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if got := readFile(t, exe); got != "old build" {
		t.Errorf("executable content = %q, want old build", got)
	}
	if inst.HasBackup() {
		t.Error("HasBackup() = true after rollback")
	}
}

func TestRollbackNoBackup(t *testing.T) {
	exe := setupExecutable(t, "old build")
	err := NewBinaryInstaller(WithExecutablePath(exe)).Rollback()
	if err == nil {
		t.Fatal("Rollback() should fail when no backup exists")
	}
	if !strings.Contains(err.Error(), "no backup found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCleanupBackup(t *testing.T) {
	exe := setupExecutable(t, "old build")
	inst := NewBinaryInstaller(WithExecutablePath(exe))

	if err := inst.CleanupBackup(); err != nil {
		t.Errorf("CleanupBackup() without backup: %v", err)
	}

	if err := os.WriteFile(exe+".backup", []byte("previous"), 0755); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	if err := inst.CleanupBackup(); err != nil {
		t.Fatalf("CleanupBackup() error: %v", err)
	}
	if inst.HasBackup() {
		t.Error("backup should be removed")
	}
}

func TestExtractTarball(t *testing.T) {
	archive := writeTarball(t, map[string]string{
		"insdesk_0.3.0_linux_x86_64/insdesk": "#!/bin/sh\necho hi\n",
	})
	destDir := t.TempDir()

	path, err := extractTarball(bytes.NewReader(archive), destDir, "insdesk")
	if err != nil {
		t.Fatalf("extractTarball() error: %v", err)
	}
	if filepath.Dir(path) != destDir {
		t.Errorf("extracted into %s, want %s", filepath.Dir(path), destDir)
	}
	if got := readFile(t, path); got != "#!/bin/sh\necho hi\n" {
		t.Errorf("extracted content = %q", got)
	}
}

func TestExtractTarballNoBinary(t *testing.T) {
	archive := writeTarball(t, map[string]string{"other/tool": "x"})
	_, err := extractTarball(bytes.NewReader(archive), t.TempDir(), "insdesk")
	if err == nil {
		t.Fatal("extractTarball() should fail when the binary is missing")
	}
	if !strings.Contains(err.Error(), "not found in archive") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtractTarballNotGzip(t *testing.T) {
	_, err := extractTarball(strings.NewReader("plain text"), t.TempDir(), "insdesk")
	if err == nil {
		t.Fatal("extractTarball() should fail on non-gzip input")
	}
}
