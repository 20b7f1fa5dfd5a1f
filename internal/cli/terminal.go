package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/cloudfs/mountfs/internal/core"
)

// rawMode returns the raw-mode hook for fd, or nil when fd is not a terminal.
func rawMode(fd int) core.RawMode {
	if !term.IsTerminal(fd) {
		return nil
	}
	return func() (func(), error) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		return func() { _ = term.Restore(fd, state) }, nil
	}
}

// execRestarter replaces the process with a fresh shell of the same binary.
type execRestarter struct {
	args   []string
	before func() error
}

func (r execRestarter) Restart(ctx context.Context) error {
	if r.before != nil {
		if err := r.before(); err != nil {
			return err
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	argv := append([]string{exe, "shell"}, r.args...)
	return syscall.Exec(exe, argv, os.Environ())
}
