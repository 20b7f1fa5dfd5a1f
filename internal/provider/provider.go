//go:generate go run go.uber.org/mock/mockgen -source=provider.go -destination=../mocks/mock_storage.go -package=mocks

// Package provider defines the storage backend contract and types.
// The command line never touches a filesystem directly: every open, read, write,
// stat and management call goes through Storage.
package provider

import (
	"context"
	"io"
	"time"
)

// Mount prefixes understood by every backend.
const (
	RootPath      = "/"
	IntPathPrefix = "/int"
	ExtPathPrefix = "/ext"
	AnyPathPrefix = "/any"
)

// AccessMode selects the direction of an open file.
type AccessMode int

const (
	AccessRead AccessMode = iota + 1
	AccessWrite
	AccessReadWrite
)

// OpenMode selects what happens when the file exists (or does not).
type OpenMode int

const (
	// OpenExisting fails when the file is missing.
	OpenExisting OpenMode = iota + 1
	// OpenAlways creates the file when missing.
	OpenAlways
	// OpenAppend creates the file when missing and positions writes at its end.
	OpenAppend
	// CreateNew fails when the file already exists.
	CreateNew
	// CreateAlways creates or truncates.
	CreateAlways
)

// FileInfo describes a file or directory as reported by the backend.
type FileInfo struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// FSInfo is the aggregate space of one mount.
type FSInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
	FSType     string
}

// SDInfo describes the external card: filesystem figures plus the
// card identification register.
type SDInfo struct {
	Label  string
	FSType string

	KiBTotal uint64
	KiBFree  uint64

	ManufacturerID     uint8
	OEMID              string
	ProductName        string
	RevisionMajor      uint8
	RevisionMinor      uint8
	SerialNumber       uint32
	ManufacturingMonth uint8
	ManufacturingYear  uint16
}

// File is an open handle owned by exactly one transfer session.
// Read returns 0 bytes at end of file; Write may return fewer bytes than asked
// together with the error that stopped it.
type File interface {
	io.Reader
	io.Writer
	io.Closer

	// Size returns the current size of the file in bytes.
	Size() (int64, error)
}

// DirIterator yields directory entries one at a time.
//
//	it, err := s.ReadDir(ctx, "/ext/apps")
//	defer it.Close()
//	for info, ok := it.Next(); ok; info, ok = it.Next() { ... }
//	if err := it.Err(); err != nil { ... }
type DirIterator interface {
	// Next returns the next entry and true, or false when exhausted or failed.
	Next() (FileInfo, bool)

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the iterator.
	Close() error
}

// Storage is the backend contract consumed by the command dispatcher.
// All errors returned are backend errors carrying one of the codes in errors.go.
type Storage interface {
	// Open opens path with the given access and open modes.
	Open(ctx context.Context, path string, access AccessMode, mode OpenMode) (File, error)

	// Stat returns metadata for path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// Timestamp returns the last modification time of path as unix seconds.
	Timestamp(ctx context.Context, path string) (uint32, error)

	// FSInfo returns the aggregate space of the mount named by mount
	// (one of the mount prefixes).
	FSInfo(ctx context.Context, mount string) (FSInfo, error)

	// SDInfo returns the external card description.
	SDInfo(ctx context.Context) (SDInfo, error)

	// Copy copies oldPath to newPath, recursively for directories.
	Copy(ctx context.Context, oldPath, newPath string) error

	// Rename moves oldPath to newPath, failing when newPath exists.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Migrate moves oldPath to newPath, renaming colliding files at the
	// destination by appending a number.
	Migrate(ctx context.Context, oldPath, newPath string) error

	// Remove deletes a file or an empty directory.
	Remove(ctx context.Context, path string) error

	// Mkdir creates a single directory.
	Mkdir(ctx context.Context, path string) error

	// MD5 returns the lowercase hexadecimal md5 of the file contents.
	MD5(ctx context.Context, path string) (string, error)

	// Format erases the mount named by mount.
	Format(ctx context.Context, mount string) error

	// ReadDir iterates one level of path.
	ReadDir(ctx context.Context, path string) (DirIterator, error)

	// Walk iterates path recursively, depth first. Entry names are full paths.
	Walk(ctx context.Context, path string) (DirIterator, error)
}
