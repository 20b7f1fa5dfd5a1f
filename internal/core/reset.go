package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudfs/mountfs/internal/provider"
)

// FlagStore persists named on/off flags across restarts.
type FlagStore interface {
	SetFlag(ctx context.Context, name string, on bool) error
	Flag(ctx context.Context, name string) (bool, error)
}

// Restarter restarts the running program.
type Restarter interface {
	Restart(ctx context.Context) error
}

// FactoryReset asks for confirmation, then marks the internal mount for
// wiping and restarts. The wipe itself happens in ApplyPendingReset.
func (d *Dispatcher) FactoryReset(ctx context.Context, flags FlagStore, restarter Restarter) error {
	d.out.line("All data will be lost! Are you sure (y/n)?")
	if !d.confirm(ctx) {
		d.log.Info("factory reset cancelled")
		d.out.line("Safe choice.")
		return nil
	}

	d.out.line("Data will be wiped after reboot.")
	if err := flags.SetFlag(ctx, FlagFactoryReset, true); err != nil {
		return fmt.Errorf("failed to schedule factory reset: %w", err)
	}
	d.log.Info("factory reset scheduled, restarting")
	if err := restarter.Restart(ctx); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}
	return nil
}

// ApplyPendingReset wipes the internal mount when a factory reset is
// pending and clears the flag. It reports whether a wipe was done.
func ApplyPendingReset(ctx context.Context, flags FlagStore, storage provider.Storage, log *slog.Logger) (bool, error) {
	pending, err := flags.Flag(ctx, FlagFactoryReset)
	if err != nil {
		return false, err
	}
	if !pending {
		return false, nil
	}

	log.Info("applying pending factory reset", "mount", provider.IntPathPrefix)
	if err := wipe(ctx, storage, provider.IntPathPrefix); err != nil {
		return false, fmt.Errorf("failed to wipe %s: %w", provider.IntPathPrefix, err)
	}
	if err := flags.SetFlag(ctx, FlagFactoryReset, false); err != nil {
		return true, err
	}
	return true, nil
}

// wipe removes everything below mount, deepest entries first.
func wipe(ctx context.Context, storage provider.Storage, mount string) error {
	it, err := storage.Walk(ctx, mount)
	if err != nil {
		return err
	}
	var paths []string
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		paths = append(paths, entry.Name)
	}
	err = it.Err()
	it.Close()
	if err != nil {
		return err
	}

	for i := len(paths) - 1; i >= 0; i-- {
		if err := storage.Remove(ctx, paths[i]); err != nil {
			return err
		}
	}
	return nil
}
