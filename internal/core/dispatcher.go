// Package core implements the storage command dispatcher: it turns one command
// line into a request, routes it through the command table and drives the
// streaming transfers and management calls against a provider.Storage.
package core

import (
	"context"
	"io"
	"log/slog"

	"github.com/cloudfs/mountfs/internal/model"
	"github.com/cloudfs/mountfs/internal/provider"
)

// RawMode switches the input terminal to single-symbol mode and returns the
// function that restores it.
type RawMode func() (restore func(), err error)

type handler func(ctx context.Context, req model.Request)

// Dispatcher executes storage command lines against a backend.
// It processes one request at a time and is not safe for concurrent use.
type Dispatcher struct {
	storage    provider.Storage
	in         Input
	out        reporter
	log        *slog.Logger
	raw        RawMode
	deviceName string
	handlers   map[string]handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRawMode sets the hook used around commands that read single symbols.
func WithRawMode(raw RawMode) Option {
	return func(d *Dispatcher) {
		d.raw = raw
	}
}

// WithDeviceName sets the label printed by "info /int".
func WithDeviceName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.deviceName = name
		}
	}
}

// NewDispatcher creates a dispatcher reading from in and printing to out.
func NewDispatcher(storage provider.Storage, in Input, out io.Writer, log *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		storage:    storage,
		in:         in,
		out:        reporter{w: out},
		log:        log,
		deviceName: "Unknown",
	}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers = map[string]handler{
		model.CommandInfo:       d.info,
		model.CommandFormat:     d.format,
		model.CommandList:       d.list,
		model.CommandTree:       d.tree,
		model.CommandRead:       d.read,
		model.CommandReadChunks: d.readChunks,
		model.CommandWrite:      d.write,
		model.CommandWriteChunk: d.writeChunk,
		model.CommandCopy:       d.twoPath(d.storage.Copy),
		model.CommandRemove:     d.remove,
		model.CommandRename:     d.twoPath(d.storage.Rename),
		model.CommandMigrate:    d.twoPath(d.storage.Migrate),
		model.CommandMkdir:      d.mkdir,
		model.CommandMD5:        d.md5,
		model.CommandStat:       d.stat,
		model.CommandTimestamp:  d.timestamp,
	}
	return d
}

// Execute parses and runs one "<command> <path> [<args>]" line.
// Every outcome, including usage and backend errors, is reported on the
// output; nothing is returned to the caller.
func (d *Dispatcher) Execute(ctx context.Context, line string) {
	req, err := ParseRequest(line)
	if err != nil {
		d.out.usage()
		return
	}

	h, ok := d.handlers[req.Command]
	if !ok {
		d.log.Debug("unknown storage command", "request_id", req.ID, "command", req.Command)
		d.out.usage()
		return
	}

	d.log.Debug("dispatching storage command",
		"request_id", req.ID,
		"command", req.Command,
		"path", req.Path,
		"kind", ClassifyPath(req.Path))
	h(ctx, req)
}

// withRaw runs fn with the terminal in single-symbol mode when a hook is set.
func (d *Dispatcher) withRaw(fn func()) {
	if d.raw != nil {
		restore, err := d.raw()
		if err != nil {
			d.log.Warn("failed to switch terminal to raw mode", "error", err)
		} else {
			defer restore()
		}
	}
	fn()
}

// confirm reads one symbol and reports whether it was y or Y.
func (d *Dispatcher) confirm(ctx context.Context) bool {
	var answer byte
	var err error
	d.withRaw(func() {
		answer, err = d.in.ReadSymbol(ctx)
	})
	if err != nil {
		d.log.Info("confirmation not received", "error", err)
		return false
	}
	return answer == 'y' || answer == 'Y'
}

// release closes a session's handle; a failed close is only logged.
func (d *Dispatcher) release(f provider.File, path string) {
	if err := f.Close(); err != nil {
		d.log.Warn("failed to close file", "path", path, "error", err)
	}
}
