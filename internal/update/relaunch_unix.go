//go:build !windows

package update

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Relaunch replaces the current process image with the freshly installed
// executable. On success it does not return.
func Relaunch() error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	binary, err = filepath.EvalSymlinks(binary)
	if err != nil {
		return fmt.Errorf("resolve symlinks: %w", err)
	}

	args := append([]string{binary}, os.Args[1:]...)
	//nolint:gosec // G204: re-executing our own binary
	return syscall.Exec(binary, args, os.Environ())
}
