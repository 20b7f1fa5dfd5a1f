// Package cli provides the engine integration for the mountfs CLI.
// This file contains the engine initialization and command implementations.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"github.com/cloudfs/mountfs/internal/core"
	"github.com/cloudfs/mountfs/internal/provider"
	"github.com/cloudfs/mountfs/internal/provider/billyfs"
)

const extLabel = "SD"

// Engine holds the mountfs components shared by every command.
type Engine struct {
	Config  Config
	Mounts  *provider.Registry
	Storage provider.Storage
	State   *core.StateStore
	Log     *slog.Logger
	Input   core.Input
	Out     io.Writer
}

// Global engine instance
var engine *Engine

// InitEngine initializes the mountfs engine from the environment and flags.
func InitEngine() (*Engine, error) {
	cfg, err := LoadConfig(configDir)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.LogLevel = "DEBUG"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logs.GetLoggerFromString(cfg.LogLevel)

	mounts, err := buildMounts(cfg)
	if err != nil {
		return nil, err
	}

	state, err := core.OpenStateStore(cfg.StatePath, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	return &Engine{
		Config:  cfg,
		Mounts:  mounts,
		Storage: billyfs.New(mounts),
		State:   state,
		Log:     log,
		Input:   core.NewStreamInput(os.Stdin),
		Out:     os.Stdout,
	}, nil
}

// buildMounts registers the internal and external mounts. The internal
// directory is created; a missing external directory means no card.
func buildMounts(cfg Config) (*provider.Registry, error) {
	mounts := provider.NewRegistry()

	var intMount *billyfs.Mount
	if cfg.IntRoot == MemoryRoot {
		intMount = billyfs.NewMemory(provider.IntPathPrefix, cfg.DeviceName, cfg.MemoryCapacity)
	} else {
		if err := os.MkdirAll(cfg.IntRoot, 0755); err != nil {
			return nil, fmt.Errorf("failed to create internal storage: %w", err)
		}
		intMount = billyfs.NewLocal(provider.IntPathPrefix, cfg.DeviceName, cfg.IntRoot)
	}

	var extMount *billyfs.Mount
	if cfg.ExtRoot == MemoryRoot {
		extMount = billyfs.NewMemory(provider.ExtPathPrefix, extLabel, cfg.MemoryCapacity,
			billyfs.WithDevice(cfg.CardDevice))
	} else {
		extMount = billyfs.NewLocal(provider.ExtPathPrefix, extLabel, cfg.ExtRoot,
			billyfs.WithDevice(cfg.CardDevice))
	}

	for _, m := range []*billyfs.Mount{intMount, extMount} {
		if err := mounts.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register mount %s: %w", m.Prefix(), err)
		}
	}
	return mounts, nil
}

// GetEngine returns the engine, initializing if needed.
func GetEngine() (*Engine, error) {
	if engine != nil {
		return engine, nil
	}

	var err error
	engine, err = InitEngine()
	return engine, err
}

// Close releases the state database.
func (e *Engine) Close() error {
	return e.State.Close()
}

// Dispatcher returns a command dispatcher bound to the engine's input and output.
func (e *Engine) Dispatcher() *core.Dispatcher {
	return core.NewDispatcher(e.Storage, e.Input, e.Out, e.Log,
		core.WithDeviceName(e.Config.DeviceName),
		core.WithRawMode(rawMode(int(os.Stdin.Fd()))))
}

// --- Command Implementations ---

// RunPendingReset finishes a factory reset scheduled before the last restart.
func RunPendingReset(ctx context.Context) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	wiped, err := core.ApplyPendingReset(ctx, e.State, e.Storage, e.Log)
	if err != nil {
		return fmt.Errorf("failed to apply factory reset: %w", err)
	}
	if wiped && !quiet {
		fmt.Fprint(e.Out, "Factory reset complete.\r\n")
	}
	return nil
}

// RunStorage dispatches one storage command line.
func RunStorage(ctx context.Context, args []string) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	e.Dispatcher().Execute(ctx, joinArgs(args))
	return nil
}

// joinArgs rebuilds a command line from argv, quoting arguments that
// contain whitespace so paths with spaces survive tokenizing.
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

// RunFactoryReset asks for confirmation and schedules a wipe of /int.
func RunFactoryReset(ctx context.Context) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	restarter := execRestarter{
		args:   restartArgs(),
		before: e.Close,
	}
	return e.Dispatcher().FactoryReset(ctx, e.State, restarter)
}

// restartArgs carries the global flags over a restart.
func restartArgs() []string {
	var args []string
	if configDir != "" {
		args = append(args, "--config", configDir)
	}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	return args
}

// RunShell reads command lines until end of input.
func RunShell(ctx context.Context) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	d := e.Dispatcher()
	for {
		if !quiet {
			fmt.Fprint(e.Out, "\r\n>: ")
		}
		line, err := core.ReadLine(ctx, e.Input)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		name, rest, res := core.NextToken(line)
		if res != core.TokenOK {
			continue
		}

		cmdCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		switch name {
		case "storage":
			d.Execute(cmdCtx, rest)
		case "factory_reset":
			err = RunFactoryReset(cmdCtx)
		default:
			fmt.Fprintf(e.Out, "`%s` command not found\r\n", name)
		}
		stop()
		if err != nil {
			return err
		}
	}
}

// RunMounts prints the configured mounts and their space.
func RunMounts(ctx context.Context) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(e.Out)
	table.SetHeader([]string{"Prefix", "Label", "Backing", "Ready", "Total KiB", "Free KiB"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, m := range e.Mounts.All() {
		backing := MemoryRoot
		if bm, ok := m.(*billyfs.Mount); ok && bm.Kind() == billyfs.KindLocal {
			backing = bm.Root()
		}

		total, free := "-", "-"
		if m.Ready() {
			info, err := e.Storage.FSInfo(ctx, m.Prefix())
			if err != nil {
				e.Log.Warn("failed to read mount usage", "mount", m.Prefix(), "error", err)
			} else {
				total = fmt.Sprintf("%d", info.TotalBytes/1024)
				free = fmt.Sprintf("%d", info.FreeBytes/1024)
			}
		}
		table.Append([]string{m.Prefix(), m.Label(), backing, fmt.Sprintf("%t", m.Ready()), total, free})
	}

	if primary := e.Mounts.Primary(); primary != nil {
		table.Append([]string{provider.AnyPathPrefix, "-", "alias of " + primary.Prefix(), fmt.Sprintf("%t", primary.Ready()), "-", "-"})
	}
	table.Render()

	if e.State != nil {
		mode := "plain"
		if e.State.IsEncrypted() {
			mode = "encrypted"
		}
		fmt.Fprintf(e.Out, "\r\nState: %s (%s)\r\n", e.State.Path(), mode)
	}
	return nil
}
