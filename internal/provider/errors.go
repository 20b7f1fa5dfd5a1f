package provider

import (
	stderrors "errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/jmgilman/go/errors"
)

// Backend codes without a counterpart in the shared code set.
const (
	CodeNotReady    errors.ErrorCode = "NOT_READY"
	CodeInvalidName errors.ErrorCode = "INVALID_NAME"
	CodeAlreadyOpen errors.ErrorCode = "ALREADY_OPEN"
	CodeShortWrite  errors.ErrorCode = "SHORT_WRITE"
)

var descriptions = map[errors.ErrorCode]string{
	CodeNotReady:              "filesystem not ready",
	errors.CodeAlreadyExists:  "file/dir already exist",
	errors.CodeNotFound:       "file/dir not exist",
	errors.CodeInvalidInput:   "invalid parameter",
	errors.CodeForbidden:      "access denied",
	CodeInvalidName:           "invalid name/path",
	errors.CodeInternal:       "internal error",
	errors.CodeNotImplemented: "function not implemented",
	CodeAlreadyOpen:           "file/dir already opened",
	CodeShortWrite:            "short write",
}

// Code returns the backend code carried by err.
// A nil error has no code and returns the empty string.
func Code(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		return code
	}
	return errors.CodeInternal
}

// Describe renders err the way the command line prints it.
func Describe(err error) string {
	if err == nil {
		return "OK"
	}
	if desc, ok := descriptions[Code(err)]; ok {
		return desc
	}
	return descriptions[errors.CodeInternal]
}

// Classify maps a filesystem error to a backend error. Errors that already
// carry a code are returned unchanged.
//
//nolint:gocyclo // flat mapping table
func Classify(err error, path string) error {
	if err == nil {
		return nil
	}

	var platformErr errors.PlatformError
	if stderrors.As(err, &platformErr) {
		return err
	}

	// ENOTEMPTY also matches fs.ErrExist, so it is checked first.
	switch {
	case stderrors.Is(err, syscall.ENOTEMPTY), stderrors.Is(err, syscall.EISDIR),
		stderrors.Is(err, syscall.ENOTDIR):
		return errors.Wrapf(err, errors.CodeForbidden, "cannot operate on %s", path)
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.Wrapf(err, errors.CodeNotFound, "%s does not exist", path)
	case stderrors.Is(err, fs.ErrExist):
		return errors.Wrapf(err, errors.CodeAlreadyExists, "%s already exists", path)
	case stderrors.Is(err, fs.ErrPermission):
		return errors.Wrapf(err, errors.CodeForbidden, "access to %s denied", path)
	case stderrors.Is(err, fs.ErrInvalid):
		return errors.Wrapf(err, errors.CodeInvalidInput, "invalid argument for %s", path)
	case stderrors.Is(err, syscall.ENAMETOOLONG):
		return errors.Wrapf(err, CodeInvalidName, "bad name %s", path)
	case stderrors.Is(err, os.ErrClosed):
		return errors.Wrapf(err, errors.CodeInvalidInput, "%s is closed", path)
	}

	return errors.Wrapf(err, errors.CodeInternal, "operation on %s failed", path)
}

// Error constructors used by backends.

// ErrNotReady reports a mount that is configured but not available.
func ErrNotReady(mount string) error {
	return errors.Newf(CodeNotReady, "mount %s is not ready", mount)
}

// ErrInvalidName reports a path outside every mount.
func ErrInvalidName(path string) error {
	return errors.Newf(CodeInvalidName, "path %s is not inside a mount", path)
}

// ErrNotImplemented reports an operation the mount does not support.
func ErrNotImplemented(op, mount string) error {
	return errors.Newf(errors.CodeNotImplemented, "%s is not implemented for %s", op, mount)
}

// ErrShortWrite reports a write that stored fewer bytes than requested.
func ErrShortWrite(path string, written, requested int) error {
	return errors.Newf(CodeShortWrite, "wrote %d of %d bytes to %s", written, requested, path)
}
