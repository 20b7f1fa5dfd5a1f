package core

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/muesli/cancelreader"
)

// SymbolETX is the end-of-text symbol (Ctrl+C in a raw terminal) that ends
// an interactive write.
const SymbolETX byte = 0x03

const inputBufferSize = 512

// Input is the channel the dispatcher reads user data from.
type Input interface {
	// ReadSymbol blocks until one byte arrives or ctx is done.
	ReadSymbol(ctx context.Context) (byte, error)

	// Read blocks until at least one byte arrives, then returns what is
	// immediately available, up to len(p). Short reads are normal.
	Read(ctx context.Context, p []byte) (int, error)
}

// StreamInput adapts an io.Reader into an Input. Every blocking read goes
// through a cancelreader so that a done context interrupts it; for an
// *os.File such as stdin the interrupted read consumes nothing.
type StreamInput struct {
	r       io.Reader
	buf     []byte
	pending []byte
	err     error
}

// NewStreamInput creates an Input reading from r.
func NewStreamInput(r io.Reader) *StreamInput {
	return &StreamInput{
		r:   r,
		buf: make([]byte, inputBufferSize),
	}
}

// fill blocks for the next read when nothing is pending.
func (in *StreamInput) fill(ctx context.Context) error {
	for len(in.pending) == 0 {
		if in.err != nil {
			return in.err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := in.readOnce(ctx)
		if errors.Is(err, cancelreader.ErrCanceled) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		in.pending = in.buf[:n]
		in.err = err
	}
	return nil
}

// readOnce performs one read that is cancelled when ctx is done.
// A cancelled reader stays cancelled, so each read gets its own.
func (in *StreamInput) readOnce(ctx context.Context) (int, error) {
	cr, err := cancelreader.NewReader(in.r)
	if err != nil {
		// epoll rejects regular files, which never block anyway.
		return in.r.Read(in.buf)
	}
	defer func() { _ = cr.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cr.Cancel()
		case <-done:
		}
	}()

	return cr.Read(in.buf)
}

// ReadSymbol returns the next byte.
func (in *StreamInput) ReadSymbol(ctx context.Context) (byte, error) {
	if err := in.fill(ctx); err != nil {
		return 0, err
	}
	b := in.pending[0]
	in.pending = in.pending[1:]
	return b, nil
}

// Read returns up to len(p) bytes from what a single read delivered.
func (in *StreamInput) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(in.pending) == 0 && len(p) > len(in.buf) {
		in.buf = make([]byte, len(p))
	}
	if err := in.fill(ctx); err != nil {
		return 0, err
	}
	n := copy(p, in.pending)
	in.pending = in.pending[n:]
	return n, nil
}

// ReadLine reads symbols up to a line feed and returns the line without
// its terminator. At end of input a partial line is returned first, then io.EOF.
func ReadLine(ctx context.Context, in Input) (string, error) {
	var sb strings.Builder
	for {
		b, err := in.ReadSymbol(ctx)
		if err != nil {
			if sb.Len() > 0 && err == io.EOF {
				return sb.String(), nil
			}
			return "", err
		}
		if b == '\n' {
			return strings.TrimSuffix(sb.String(), "\r"), nil
		}
		sb.WriteByte(b)
	}
}
