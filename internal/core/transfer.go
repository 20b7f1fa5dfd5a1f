package core

import (
	"context"

	"github.com/jmgilman/go/errors"

	"github.com/cloudfs/mountfs/internal/model"
	"github.com/cloudfs/mountfs/internal/provider"
)

const (
	readBufferSize  = 128
	writeBufferSize = 512

	// maxChunkBuffer bounds the buffer write_chunk allocates for one block.
	maxChunkBuffer = 1 << 20
)

// read prints the file size and then the whole content.
func (d *Dispatcher) read(ctx context.Context, req model.Request) {
	f, err := d.storage.Open(ctx, req.Path, provider.AccessRead, provider.OpenExisting)
	if err != nil {
		d.out.storageError(err)
		return
	}
	defer d.release(f, req.Path)

	size, err := f.Size()
	if err != nil {
		d.out.storageError(err)
		return
	}
	d.out.line("Size: %d", size)

	buf := make([]byte, readBufferSize)
	for {
		n, err := f.Read(buf)
		d.out.raw(buf[:n])
		if err != nil {
			d.out.line("")
			d.out.storageError(err)
			return
		}
		if n == 0 {
			break
		}
	}
	d.out.line("")
}

// readChunks prints the file in blocks of the requested size, waiting for
// one symbol from the input before each block.
func (d *Dispatcher) readChunks(ctx context.Context, req model.Request) {
	count, ok := parseCount(req.Args)
	if !ok {
		d.out.usage()
		return
	}

	f, err := d.storage.Open(ctx, req.Path, provider.AccessRead, provider.OpenExisting)
	if err != nil {
		d.out.storageError(err)
		return
	}
	defer d.release(f, req.Path)

	size, err := f.Size()
	if err != nil {
		d.out.storageError(err)
		return
	}
	d.out.line("Size: %d", size)

	if count > 0 && size > 0 {
		d.withRaw(func() {
			d.sendChunks(ctx, f, req.Path, size, int(min(int64(count), size)))
		})
	}
	d.out.line("")
}

func (d *Dispatcher) sendChunks(ctx context.Context, f provider.File, path string, size int64, chunk int) {
	buf := make([]byte, chunk)
	for remaining := size; remaining > 0; {
		d.out.raw([]byte("\r\nReady?\r\n"))
		if _, err := d.in.ReadSymbol(ctx); err != nil {
			d.log.Info("chunked read interrupted", "path", path, "remaining", remaining, "error", err)
			return
		}

		n, err := f.Read(buf)
		d.out.raw(buf[:n])
		if err != nil {
			d.out.storageError(err)
			return
		}
		if n == 0 {
			d.out.storageError(errors.Newf(errors.CodeInternal, "%s ended %d bytes early", path, remaining))
			return
		}
		remaining -= int64(n)
	}
}

// write appends typed text to the file until ETX, echoing every symbol.
// Input is buffered and flushed each time the buffer fills; the partial
// buffer is flushed on exit.
func (d *Dispatcher) write(ctx context.Context, req model.Request) {
	f, err := d.storage.Open(ctx, req.Path, provider.AccessWrite, provider.OpenAppend)
	if err != nil {
		d.out.storageError(err)
		return
	}
	defer d.release(f, req.Path)

	d.out.line("Just write your text data. New line by Ctrl+Enter, exit by Ctrl+C.")

	d.withRaw(func() {
		buf := make([]byte, writeBufferSize)
		filled := 0
		for {
			if ctx.Err() != nil {
				d.log.Info("interactive write cancelled", "path", req.Path)
				break
			}
			symbol, err := d.in.ReadSymbol(ctx)
			if err != nil {
				d.log.Info("interactive write input closed", "path", req.Path, "error", err)
				break
			}
			if symbol == SymbolETX {
				break
			}

			d.out.raw([]byte{symbol})
			buf[filled] = symbol
			filled++
			if filled == len(buf) {
				d.flush(f, req.Path, buf)
				filled = 0
			}
		}
		if filled > 0 {
			d.flush(f, req.Path, buf[:filled])
		}
	})
	d.out.line("")
}

// flush writes p and reports a failed or short write. The session continues.
func (d *Dispatcher) flush(f provider.File, path string, p []byte) {
	n, err := f.Write(p)
	if n == len(p) && err == nil {
		return
	}
	if err == nil {
		err = provider.ErrShortWrite(path, n, len(p))
	}
	d.out.storageError(err)
}

// writeChunk appends one block of raw input bytes to the file.
func (d *Dispatcher) writeChunk(ctx context.Context, req model.Request) {
	count, ok := parseCount(req.Args)
	if !ok {
		d.out.usage()
		return
	}

	f, err := d.storage.Open(ctx, req.Path, provider.AccessWrite, provider.OpenAppend)
	if err != nil {
		d.out.storageError(err)
		return
	}
	defer d.release(f, req.Path)

	d.out.line("Ready")
	if count == 0 {
		return
	}

	// A count past the buffer bound is reported as a short write.
	buf := make([]byte, min(count, maxChunkBuffer))
	var received int
	d.withRaw(func() {
		received, err = d.in.Read(ctx, buf)
	})
	if err != nil {
		d.log.Info("chunk input not received", "path", req.Path, "error", err)
	}

	written, err := f.Write(buf[:received])
	if written != int(count) {
		if err == nil {
			err = provider.ErrShortWrite(req.Path, written, int(count))
		}
		d.out.storageError(err)
	}
}
