package daemon

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Reexec replaces the running process with a fresh copy of the same
// executable, arguments and environment.
func Reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable: %w", err)
	}
	return unix.Exec(exe, os.Args, os.Environ())
}
