// Package billyfs provides a go-billy backed storage provider.
// Each mount prefix is served by its own billy.Filesystem: a directory on disk
// (osfs) or an in-memory tree (memfs).
package billyfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
	"github.com/shirou/gopsutil/disk"

	"github.com/cloudfs/mountfs/internal/provider"
)

const copyBufferSize = 512

// Storage implements provider.Storage over registered billy mounts.
type Storage struct {
	mounts *provider.Registry
}

// New creates a storage backend serving the mounts in reg.
func New(reg *provider.Registry) *Storage {
	return &Storage{mounts: reg}
}

// location is a caller path resolved onto a mount.
type location struct {
	mount  *Mount
	prefix string // prefix as written by the caller, /any stays /any
	rel    string // cleaned path inside the mount, always starting with "/"
	full   string
}

func (l location) fs() billy.Filesystem { return l.mount.bfs }

func (l location) child(name string) location {
	rel := path.Join(l.rel, name)
	return location{mount: l.mount, prefix: l.prefix, rel: rel, full: l.prefix + rel}
}

func (l location) isRoot() bool { return l.rel == "/" }

// resolve maps a caller path such as /ext/apps/x.txt onto its mount.
func (s *Storage) resolve(p string) (location, error) {
	prefix, rest := splitPrefix(p)
	if prefix == "" {
		return location{}, provider.ErrInvalidName(p)
	}

	m, ok := s.mounts.Get(prefix)
	if !ok {
		return location{}, provider.ErrNotReady(prefix)
	}
	bm, ok := m.(*Mount)
	if !ok {
		return location{}, errors.Newf(errors.CodeInternal, "mount %s is not a billy mount", prefix)
	}
	if !bm.Ready() {
		return location{}, provider.ErrNotReady(prefix)
	}

	rel := path.Clean("/" + rest)
	full := prefix + rel
	if rel == "/" {
		full = prefix
	}
	return location{mount: bm, prefix: prefix, rel: rel, full: full}, nil
}

// splitPrefix returns the mount prefix of p and the remainder.
func splitPrefix(p string) (string, string) {
	for _, prefix := range provider.MountPrefixes {
		if p == prefix {
			return prefix, ""
		}
		if strings.HasPrefix(p, prefix+"/") {
			return prefix, strings.TrimPrefix(p, prefix)
		}
	}
	return "", ""
}

func openFlags(access provider.AccessMode, mode provider.OpenMode) (int, error) {
	var flag int
	switch access {
	case provider.AccessRead:
		flag = os.O_RDONLY
	case provider.AccessWrite:
		flag = os.O_WRONLY
	case provider.AccessReadWrite:
		flag = os.O_RDWR
	default:
		return 0, errors.Newf(errors.CodeInvalidInput, "unknown access mode %d", access)
	}

	switch mode {
	case provider.OpenExisting:
	case provider.OpenAlways:
		flag |= os.O_CREATE
	case provider.OpenAppend:
		flag |= os.O_CREATE | os.O_APPEND
	case provider.CreateNew:
		flag |= os.O_CREATE | os.O_EXCL
	case provider.CreateAlways:
		flag |= os.O_CREATE | os.O_TRUNC
	default:
		return 0, errors.Newf(errors.CodeInvalidInput, "unknown open mode %d", mode)
	}
	return flag, nil
}

// Open opens a file on its mount.
func (s *Storage) Open(ctx context.Context, p string, access provider.AccessMode, mode provider.OpenMode) (provider.File, error) {
	loc, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	flag, err := openFlags(access, mode)
	if err != nil {
		return nil, err
	}

	info, statErr := loc.fs().Stat(loc.rel)
	if statErr == nil && info.IsDir() {
		return nil, errors.Newf(errors.CodeForbidden, "%s is a directory", loc.full)
	}

	// billy creates missing parents on O_CREATE; a missing directory must fail instead.
	if flag&os.O_CREATE != 0 && !loc.isRoot() {
		parent := path.Dir(loc.rel)
		if info, err := loc.fs().Stat(parent); err != nil {
			return nil, provider.Classify(err, loc.prefix+parent)
		} else if !info.IsDir() {
			return nil, errors.Newf(errors.CodeInvalidInput, "%s is not a directory", loc.prefix+parent)
		}
	}

	f, err := loc.fs().OpenFile(loc.rel, flag, 0o644)
	if err != nil {
		return nil, provider.Classify(err, loc.full)
	}
	if statErr != nil || flag&os.O_TRUNC != 0 {
		loc.mount.touch(loc.rel)
	}
	return &File{file: f, fs: loc.fs(), mount: loc.mount, name: loc.rel, path: loc.full}, nil
}

// Stat returns metadata for a path.
func (s *Storage) Stat(ctx context.Context, p string) (provider.FileInfo, error) {
	loc, err := s.resolve(p)
	if err != nil {
		return provider.FileInfo{}, err
	}
	info, err := loc.fs().Stat(loc.rel)
	if err != nil {
		return provider.FileInfo{}, provider.Classify(err, loc.full)
	}
	return toFileInfo(path.Base(loc.full), info, loc.mount.modTime(loc.rel, info.ModTime())), nil
}

// Timestamp returns the modification time of a path in unix seconds.
func (s *Storage) Timestamp(ctx context.Context, p string) (uint32, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		return 0, err
	}
	return uint32(info.ModTime.Unix()), nil
}

// FSInfo returns total and free space of a mount.
func (s *Storage) FSInfo(ctx context.Context, mount string) (provider.FSInfo, error) {
	loc, err := s.resolve(mount)
	if err != nil {
		return provider.FSInfo{}, err
	}
	if !loc.isRoot() {
		return provider.FSInfo{}, errors.Newf(errors.CodeInvalidInput, "%s is not a mount", mount)
	}
	return s.usage(ctx, loc)
}

func (s *Storage) usage(ctx context.Context, loc location) (provider.FSInfo, error) {
	if loc.mount.kind == KindLocal {
		stat, err := disk.Usage(loc.mount.root)
		if err != nil {
			return provider.FSInfo{}, errors.Wrapf(err, errors.CodeInternal, "failed to read usage of %s", loc.full)
		}
		return provider.FSInfo{TotalBytes: stat.Total, FreeBytes: stat.Free, FSType: stat.Fstype}, nil
	}

	var used uint64
	err := util.Walk(loc.fs(), "/", func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			used += uint64(info.Size())
		}
		return ctx.Err()
	})
	if err != nil {
		return provider.FSInfo{}, provider.Classify(err, loc.full)
	}

	free := uint64(0)
	if used < loc.mount.capacity {
		free = loc.mount.capacity - used
	}
	return provider.FSInfo{TotalBytes: loc.mount.capacity, FreeBytes: free, FSType: "memfs"}, nil
}

// SDInfo describes the external mount.
func (s *Storage) SDInfo(ctx context.Context) (provider.SDInfo, error) {
	loc, err := s.resolve(provider.ExtPathPrefix)
	if err != nil {
		return provider.SDInfo{}, err
	}
	usage, err := s.usage(ctx, loc)
	if err != nil {
		return provider.SDInfo{}, err
	}

	info := provider.SDInfo{
		Label:    loc.mount.label,
		FSType:   usage.FSType,
		KiBTotal: usage.TotalBytes / 1024,
		KiBFree:  usage.FreeBytes / 1024,
	}
	readCardID(loc.mount.device, &info)
	return info, nil
}

// Copy copies a file or a directory tree.
func (s *Storage) Copy(ctx context.Context, oldPath, newPath string) error {
	src, err := s.resolve(oldPath)
	if err != nil {
		return err
	}
	dst, err := s.resolve(newPath)
	if err != nil {
		return err
	}
	return s.copyTree(ctx, src, dst)
}

func (s *Storage) copyTree(ctx context.Context, src, dst location) error {
	info, err := src.fs().Stat(src.rel)
	if err != nil {
		return provider.Classify(err, src.full)
	}
	if exists(dst) {
		return errors.Newf(errors.CodeAlreadyExists, "%s already exists", dst.full)
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}

	if src.mount == dst.mount && within(dst.rel, src.rel) {
		return errors.Newf(errors.CodeInvalidInput, "cannot copy %s into itself", src.full)
	}

	return util.Walk(src.fs(), src.rel, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return provider.Classify(err, src.prefix+p)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		target := dst.child(strings.TrimPrefix(p, src.rel))
		if info.IsDir() {
			if err := target.fs().MkdirAll(target.rel, 0o755); err != nil {
				return provider.Classify(err, target.full)
			}
			target.mount.touch(target.rel)
			return nil
		}
		return copyFile(location{mount: src.mount, prefix: src.prefix, rel: p, full: src.prefix + p}, target)
	})
}

func copyFile(src, dst location) error {
	in, err := src.fs().Open(src.rel)
	if err != nil {
		return provider.Classify(err, src.full)
	}
	defer func() { _ = in.Close() }()

	out, err := dst.fs().OpenFile(dst.rel, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return provider.Classify(err, dst.full)
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		_ = out.Close()
		return provider.Classify(err, dst.full)
	}
	if err := out.Close(); err != nil {
		return provider.Classify(err, dst.full)
	}
	dst.mount.touch(dst.rel)
	return nil
}

// Rename moves a file or directory. The destination must not exist.
func (s *Storage) Rename(ctx context.Context, oldPath, newPath string) error {
	src, err := s.resolve(oldPath)
	if err != nil {
		return err
	}
	dst, err := s.resolve(newPath)
	if err != nil {
		return err
	}
	if _, err := src.fs().Stat(src.rel); err != nil {
		return provider.Classify(err, src.full)
	}
	if exists(dst) {
		return errors.Newf(errors.CodeAlreadyExists, "%s already exists", dst.full)
	}
	if src.mount == dst.mount && within(dst.rel, src.rel) {
		return errors.Newf(errors.CodeInvalidInput, "cannot move %s into itself", src.full)
	}
	return s.move(ctx, src, dst)
}

// move renames inside one mount and copies then deletes across mounts.
func (s *Storage) move(ctx context.Context, src, dst location) error {
	if src.mount == dst.mount {
		if err := src.fs().Rename(src.rel, dst.rel); err != nil {
			return provider.Classify(err, src.full)
		}
		src.mount.moved(src.rel, dst.rel)
		return nil
	}
	if err := s.copyTree(ctx, src, dst); err != nil {
		return err
	}
	return s.removeAll(src)
}

func (s *Storage) removeAll(loc location) error {
	if err := util.RemoveAll(loc.fs(), loc.rel); err != nil {
		return provider.Classify(err, loc.full)
	}
	loc.mount.forget(loc.rel)
	return nil
}

// Migrate moves oldPath into newPath, merging directories and renaming
// colliding files with a numeric suffix ("name1.ext", "name2.ext", ...).
func (s *Storage) Migrate(ctx context.Context, oldPath, newPath string) error {
	src, err := s.resolve(oldPath)
	if err != nil {
		return err
	}
	dst, err := s.resolve(newPath)
	if err != nil {
		return err
	}
	info, err := src.fs().Stat(src.rel)
	if err != nil {
		return provider.Classify(err, src.full)
	}

	if !info.IsDir() {
		return s.move(ctx, src, nextFreeName(dst))
	}
	if src.mount == dst.mount && within(dst.rel, src.rel) {
		return errors.Newf(errors.CodeInvalidInput, "cannot migrate %s into itself", src.full)
	}

	created := !exists(dst)
	if err := dst.fs().MkdirAll(dst.rel, 0o755); err != nil {
		return provider.Classify(err, dst.full)
	}
	if created {
		dst.mount.touch(dst.rel)
	}
	entries, err := src.fs().ReadDir(src.rel)
	if err != nil {
		return provider.Classify(err, src.full)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		from := src.child(entry.Name())
		to := dst.child(entry.Name())
		if entry.IsDir() {
			if err := s.Migrate(ctx, from.full, to.full); err != nil {
				return err
			}
			continue
		}
		if err := s.move(ctx, from, nextFreeName(to)); err != nil {
			return err
		}
	}
	return s.removeAll(src)
}

// nextFreeName returns loc when free, otherwise the first free "<name>N<ext>".
func nextFreeName(loc location) location {
	if !exists(loc) {
		return loc
	}
	dir, file := path.Split(loc.rel)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	for i := 1; ; i++ {
		rel := path.Join(dir, base+strconv.Itoa(i)+ext)
		candidate := location{mount: loc.mount, prefix: loc.prefix, rel: rel, full: loc.prefix + rel}
		if !exists(candidate) {
			return candidate
		}
	}
}

// within reports whether rel is parent or lies below it.
func within(rel, parent string) bool {
	return parent == "/" || rel == parent || strings.HasPrefix(rel, parent+"/")
}

func exists(loc location) bool {
	_, err := loc.fs().Stat(loc.rel)
	return err == nil
}

// Remove deletes a file or an empty directory.
func (s *Storage) Remove(ctx context.Context, p string) error {
	loc, err := s.resolve(p)
	if err != nil {
		return err
	}
	if loc.isRoot() {
		return errors.Newf(errors.CodeForbidden, "cannot remove mount %s", loc.full)
	}
	info, err := loc.fs().Stat(loc.rel)
	if err != nil {
		return provider.Classify(err, loc.full)
	}
	if info.IsDir() {
		entries, err := loc.fs().ReadDir(loc.rel)
		if err != nil {
			return provider.Classify(err, loc.full)
		}
		if len(entries) > 0 {
			return errors.Newf(errors.CodeForbidden, "directory %s is not empty", loc.full)
		}
	}
	if err := loc.fs().Remove(loc.rel); err != nil {
		return provider.Classify(err, loc.full)
	}
	loc.mount.forget(loc.rel)
	return nil
}

// Mkdir creates one directory. The parent must exist.
func (s *Storage) Mkdir(ctx context.Context, p string) error {
	loc, err := s.resolve(p)
	if err != nil {
		return err
	}
	if exists(loc) {
		return errors.Newf(errors.CodeAlreadyExists, "%s already exists", loc.full)
	}
	parent := path.Dir(loc.rel)
	if info, err := loc.fs().Stat(parent); err != nil {
		return provider.Classify(err, loc.prefix+parent)
	} else if !info.IsDir() {
		return errors.Newf(errors.CodeInvalidInput, "%s is not a directory", loc.prefix+parent)
	}
	if err := loc.fs().MkdirAll(loc.rel, 0o755); err != nil {
		return provider.Classify(err, loc.full)
	}
	loc.mount.touch(loc.rel)
	return nil
}

// MD5 hashes a file.
func (s *Storage) MD5(ctx context.Context, p string) (string, error) {
	loc, err := s.resolve(p)
	if err != nil {
		return "", err
	}
	if info, err := loc.fs().Stat(loc.rel); err != nil {
		return "", provider.Classify(err, loc.full)
	} else if info.IsDir() {
		return "", errors.Newf(errors.CodeForbidden, "%s is a directory", loc.full)
	}

	f, err := loc.fs().Open(loc.rel)
	if err != nil {
		return "", provider.Classify(err, loc.full)
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", provider.Classify(err, loc.full)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Format erases every entry of the external mount.
// The internal mount cannot be formatted.
func (s *Storage) Format(ctx context.Context, mount string) error {
	if mount != provider.ExtPathPrefix {
		return provider.ErrNotImplemented("format", mount)
	}
	loc, err := s.resolve(mount)
	if err != nil {
		return err
	}
	entries, err := loc.fs().ReadDir(loc.rel)
	if err != nil {
		return provider.Classify(err, loc.full)
	}
	for _, entry := range entries {
		if err := s.removeAll(loc.child(entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ReadDir lists one level of a directory.
func (s *Storage) ReadDir(ctx context.Context, p string) (provider.DirIterator, error) {
	loc, err := s.openDir(p)
	if err != nil {
		return nil, err
	}
	infos, err := loc.fs().ReadDir(loc.rel)
	if err != nil {
		return nil, provider.Classify(err, loc.full)
	}
	entries := make([]provider.FileInfo, len(infos))
	for i, info := range infos {
		entries[i] = toFileInfo(info.Name(), info, loc.mount.modTime(loc.child(info.Name()).rel, info.ModTime()))
	}
	return &sliceIterator{entries: entries}, nil
}

// Walk lists a directory tree depth first, naming each entry by its full path.
func (s *Storage) Walk(ctx context.Context, p string) (provider.DirIterator, error) {
	loc, err := s.openDir(p)
	if err != nil {
		return nil, err
	}

	var entries []provider.FileInfo
	err = util.Walk(loc.fs(), loc.rel, func(rel string, info os.FileInfo, err error) error {
		if err != nil {
			return provider.Classify(err, loc.prefix+rel)
		}
		if rel == loc.rel {
			return nil
		}
		entries = append(entries, toFileInfo(loc.prefix+rel, info, loc.mount.modTime(rel, info.ModTime())))
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return &sliceIterator{entries: entries}, nil
}

func (s *Storage) openDir(p string) (location, error) {
	loc, err := s.resolve(p)
	if err != nil {
		return location{}, err
	}
	info, err := loc.fs().Stat(loc.rel)
	if err != nil {
		return location{}, provider.Classify(err, loc.full)
	}
	if !info.IsDir() {
		return location{}, errors.Newf(errors.CodeInvalidInput, "%s is not a directory", loc.full)
	}
	return loc, nil
}

func toFileInfo(name string, info os.FileInfo, modTime time.Time) provider.FileInfo {
	fi := provider.FileInfo{
		Name:    name,
		IsDir:   info.IsDir(),
		ModTime: modTime,
	}
	if !fi.IsDir {
		fi.Size = info.Size()
	}
	return fi
}

var _ provider.Storage = (*Storage)(nil)
