//go:build windows

package update

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Relaunch starts a detached copy of the freshly installed executable and
// exits the current process. On success it does not return.
func Relaunch() error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	binary, err = filepath.EvalSymlinks(binary)
	if err != nil {
		return fmt.Errorf("resolve symlinks: %w", err)
	}

	//nolint:gosec // G204: re-launching our own binary
	cmd := exec.Command(binary, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start new process: %w", err)
	}
	_ = cmd.Process.Release()
	os.Exit(0)
	return nil
}
