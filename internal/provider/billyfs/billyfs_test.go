package billyfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudfs/mountfs/internal/provider"
)

const testCapacity = 64 * 1024

func newMemoryStorage(t *testing.T) *Storage {
	t.Helper()
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(NewMemory(provider.IntPathPrefix, "int", testCapacity)))
	require.NoError(t, reg.Register(NewMemory(provider.ExtPathPrefix, "SD", testCapacity)))
	return New(reg)
}

func put(t *testing.T, s *Storage, p, content string) {
	t.Helper()
	f, err := s.Open(context.Background(), p, provider.AccessWrite, provider.CreateAlways)
	require.NoError(t, err)
	_, err = io.WriteString(f, content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func get(t *testing.T, s *Storage, p string) string {
	t.Helper()
	f, err := s.Open(context.Background(), p, provider.AccessRead, provider.OpenExisting)
	require.NoError(t, err)
	defer f.Close()

	// File.Read reports end of file as (0, nil), so io.ReadAll cannot be used.
	var data []byte
	buf := make([]byte, 256)
	for {
		n, err := f.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			return string(data)
		}
		data = append(data, buf[:n]...)
	}
}

func entryNames(t *testing.T, it provider.DirIterator, err error) []string {
	t.Helper()
	require.NoError(t, err)
	defer it.Close()
	var names []string
	for info, ok := it.Next(); ok; info, ok = it.Next() {
		names = append(names, info.Name)
	}
	require.NoError(t, it.Err())
	return names
}

func TestStorage_OpenModes(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)

	_, err := s.Open(ctx, "/int/missing.txt", provider.AccessRead, provider.OpenExisting)
	assert.Equal(t, errors.CodeNotFound, provider.Code(err))

	put(t, s, "/int/a.txt", "one")
	_, err = s.Open(ctx, "/int/a.txt", provider.AccessWrite, provider.CreateNew)
	assert.Equal(t, errors.CodeAlreadyExists, provider.Code(err))

	f, err := s.Open(ctx, "/int/a.txt", provider.AccessWrite, provider.OpenAppend)
	require.NoError(t, err)
	_, err = f.Write([]byte("two"))
	require.NoError(t, err)
	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
	require.NoError(t, f.Close())
	assert.Equal(t, "onetwo", get(t, s, "/int/a.txt"))

	_, err = s.Open(ctx, "/int/nodir/b.txt", provider.AccessWrite, provider.OpenAlways)
	assert.Equal(t, errors.CodeNotFound, provider.Code(err), "parents are not created")

	require.NoError(t, s.Mkdir(ctx, "/int/dir"))
	_, err = s.Open(ctx, "/int/dir", provider.AccessRead, provider.OpenExisting)
	assert.Equal(t, errors.CodeForbidden, provider.Code(err))
}

func TestStorage_FileCloseTwice(t *testing.T) {
	s := newMemoryStorage(t)
	f, err := s.Open(context.Background(), "/ext/x.txt", provider.AccessWrite, provider.OpenAlways)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	assert.Equal(t, errors.CodeInvalidInput, provider.Code(f.Close()))
}

func TestStorage_PathResolution(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)

	_, err := s.Stat(ctx, "/usb/file")
	assert.Equal(t, provider.CodeInvalidName, provider.Code(err))

	put(t, s, "/any/via-alias.txt", "ext")
	assert.Equal(t, "ext", get(t, s, "/ext/via-alias.txt"))

	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(NewMemory(provider.IntPathPrefix, "int", testCapacity)))
	require.NoError(t, reg.Register(NewLocal(provider.ExtPathPrefix, "SD", filepath.Join(t.TempDir(), "no-card"))))
	s = New(reg)

	_, err = s.Stat(ctx, "/ext")
	assert.Equal(t, provider.CodeNotReady, provider.Code(err))

	put(t, s, "/any/fallback.txt", "int")
	assert.Equal(t, "int", get(t, s, "/int/fallback.txt"))
}

func TestStorage_CopyTree(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	require.NoError(t, s.Mkdir(ctx, "/int/src"))
	require.NoError(t, s.Mkdir(ctx, "/int/src/sub"))
	put(t, s, "/int/src/a.txt", "a")
	put(t, s, "/int/src/sub/b.txt", "b")

	require.NoError(t, s.Copy(ctx, "/int/src", "/ext/dst"))
	assert.Equal(t, "a", get(t, s, "/ext/dst/a.txt"))
	assert.Equal(t, "b", get(t, s, "/ext/dst/sub/b.txt"))
	assert.Equal(t, "a", get(t, s, "/int/src/a.txt"), "source is kept")

	err := s.Copy(ctx, "/int/src", "/ext/dst")
	assert.Equal(t, errors.CodeAlreadyExists, provider.Code(err))

	err = s.Copy(ctx, "/int/src", "/int/src/sub/again")
	assert.Equal(t, errors.CodeInvalidInput, provider.Code(err))
}

func TestStorage_Rename(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	put(t, s, "/int/a.txt", "a")
	put(t, s, "/int/b.txt", "b")

	err := s.Rename(ctx, "/int/a.txt", "/int/b.txt")
	assert.Equal(t, errors.CodeAlreadyExists, provider.Code(err))

	require.NoError(t, s.Rename(ctx, "/int/a.txt", "/int/c.txt"))
	assert.Equal(t, "a", get(t, s, "/int/c.txt"))

	require.NoError(t, s.Rename(ctx, "/int/c.txt", "/ext/c.txt"))
	assert.Equal(t, "a", get(t, s, "/ext/c.txt"))
	_, err = s.Stat(ctx, "/int/c.txt")
	assert.Equal(t, errors.CodeNotFound, provider.Code(err))
}

func TestStorage_RenameIntoItself(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	require.NoError(t, s.Mkdir(ctx, "/int/a"))
	put(t, s, "/int/a/f.txt", "data")

	for _, target := range []string{"/int/a/b", "/int/a/sub/deeper"} {
		err := s.Rename(ctx, "/int/a", target)
		assert.Equal(t, errors.CodeInvalidInput, provider.Code(err), target)
	}
	assert.Equal(t, "data", get(t, s, "/int/a/f.txt"))

	// The same name on the other mount is a separate tree
	require.NoError(t, s.Rename(ctx, "/int/a", "/ext/a"))
	assert.Equal(t, "data", get(t, s, "/ext/a/f.txt"))
}

func TestStorage_MemoryTimestamps(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	mount := NewMemory(provider.IntPathPrefix, "int", testCapacity)
	mount.times = newModTimes(func() time.Time { return clock })
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(mount))
	s := New(reg)

	timestamp := func(p string) uint32 {
		t.Helper()
		ts, err := s.Timestamp(ctx, p)
		require.NoError(t, err)
		return ts
	}
	created := uint32(clock.Unix())

	put(t, s, "/int/a.txt", "one")
	assert.Equal(t, created, timestamp("/int/a.txt"))
	assert.Equal(t, created, timestamp("/int"), "mount root keeps its creation time")

	clock = clock.Add(10 * time.Second)
	assert.Equal(t, created, timestamp("/int/a.txt"), "reading the time does not change it")

	f, err := s.Open(ctx, "/int/a.txt", provider.AccessWrite, provider.OpenAppend)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, created, timestamp("/int/a.txt"), "open without write keeps the time")

	f, err = s.Open(ctx, "/int/a.txt", provider.AccessWrite, provider.OpenAppend)
	require.NoError(t, err)
	_, err = f.Write([]byte("two"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	written := uint32(clock.Unix())
	assert.Equal(t, written, timestamp("/int/a.txt"))

	clock = clock.Add(10 * time.Second)
	require.NoError(t, s.Mkdir(ctx, "/int/d"))
	require.NoError(t, s.Rename(ctx, "/int/a.txt", "/int/d/b.txt"))
	assert.Equal(t, written, timestamp("/int/d/b.txt"), "rename keeps the time")
	assert.Equal(t, uint32(clock.Unix()), timestamp("/int/d"))

	clock = clock.Add(10 * time.Second)
	require.NoError(t, s.Copy(ctx, "/int/d/b.txt", "/int/c.txt"))
	assert.Equal(t, uint32(clock.Unix()), timestamp("/int/c.txt"))
	assert.Equal(t, written, timestamp("/int/d/b.txt"))
}

func TestStorage_MigrateRenamesCollisions(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	require.NoError(t, s.Mkdir(ctx, "/int/apps"))
	require.NoError(t, s.Mkdir(ctx, "/int/apps/sub"))
	put(t, s, "/int/apps/cfg.txt", "new")
	put(t, s, "/int/apps/sub/x.bin", "x")

	require.NoError(t, s.Mkdir(ctx, "/ext/apps"))
	put(t, s, "/ext/apps/cfg.txt", "old")
	put(t, s, "/ext/apps/cfg1.txt", "older")

	require.NoError(t, s.Migrate(ctx, "/int/apps", "/ext/apps"))

	assert.Equal(t, "old", get(t, s, "/ext/apps/cfg.txt"))
	assert.Equal(t, "older", get(t, s, "/ext/apps/cfg1.txt"))
	assert.Equal(t, "new", get(t, s, "/ext/apps/cfg2.txt"))
	assert.Equal(t, "x", get(t, s, "/ext/apps/sub/x.bin"))

	_, err := s.Stat(ctx, "/int/apps")
	assert.Equal(t, errors.CodeNotFound, provider.Code(err))

	err = s.Migrate(ctx, "/ext/apps", "/ext/apps/sub")
	assert.Equal(t, errors.CodeInvalidInput, provider.Code(err))
}

func TestStorage_RemoveAndMkdir(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)

	err := s.Mkdir(ctx, "/ext/a/b")
	assert.Equal(t, errors.CodeNotFound, provider.Code(err))

	require.NoError(t, s.Mkdir(ctx, "/ext/a"))
	assert.Equal(t, errors.CodeAlreadyExists, provider.Code(s.Mkdir(ctx, "/ext/a")))

	put(t, s, "/ext/a/f.txt", "f")
	assert.Equal(t, errors.CodeForbidden, provider.Code(s.Remove(ctx, "/ext/a")))
	assert.Equal(t, errors.CodeForbidden, provider.Code(s.Remove(ctx, "/ext")))

	require.NoError(t, s.Remove(ctx, "/ext/a/f.txt"))
	require.NoError(t, s.Remove(ctx, "/ext/a"))
	assert.Equal(t, errors.CodeNotFound, provider.Code(s.Remove(ctx, "/ext/a")))
}

func TestStorage_MD5(t *testing.T) {
	s := newMemoryStorage(t)
	put(t, s, "/int/h.txt", "hello")

	sum, err := s.MD5(context.Background(), "/int/h.txt")
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", sum)
}

func TestStorage_FSInfo(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	put(t, s, "/int/blob", string(make([]byte, 2048)))

	info, err := s.FSInfo(ctx, "/int")
	require.NoError(t, err)
	assert.Equal(t, uint64(testCapacity), info.TotalBytes)
	assert.Equal(t, uint64(testCapacity-2048), info.FreeBytes)
	assert.Equal(t, "memfs", info.FSType)

	_, err = s.FSInfo(ctx, "/int/blob")
	assert.Equal(t, errors.CodeInvalidInput, provider.Code(err))
}

func TestStorage_FSInfoLocal(t *testing.T) {
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(NewLocal(provider.IntPathPrefix, "int", t.TempDir())))
	s := New(reg)

	info, err := s.FSInfo(context.Background(), "/int")
	require.NoError(t, err)
	assert.NotZero(t, info.TotalBytes)
	assert.LessOrEqual(t, info.FreeBytes, info.TotalBytes)
}

func TestStorage_LocalMount(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(NewLocal(provider.IntPathPrefix, "int", root)))
	s := New(reg)

	put(t, s, "/int/disk.txt", "on disk")

	data, err := os.ReadFile(filepath.Join(root, "disk.txt"))
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(data))

	info, err := s.Stat(ctx, "/int/disk.txt")
	require.NoError(t, err)
	assert.Equal(t, "disk.txt", info.Name)
	assert.Equal(t, int64(7), info.Size)
}

func TestStorage_Format(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	require.NoError(t, s.Mkdir(ctx, "/ext/d"))
	put(t, s, "/ext/d/f.txt", "f")
	put(t, s, "/ext/g.txt", "g")

	assert.Equal(t, errors.CodeNotImplemented, provider.Code(s.Format(ctx, "/int")))

	require.NoError(t, s.Format(ctx, "/ext"))
	it, err := s.ReadDir(ctx, "/ext")
	assert.Empty(t, entryNames(t, it, err))
}

func TestStorage_ReadDirAndWalk(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStorage(t)
	require.NoError(t, s.Mkdir(ctx, "/int/a"))
	put(t, s, "/int/a/1.txt", "1")
	put(t, s, "/int/b.txt", "b")

	it, err := s.ReadDir(ctx, "/int")
	assert.Equal(t, []string{"a", "b.txt"}, entryNames(t, it, err))

	it, err = s.Walk(ctx, "/int")
	assert.Equal(t, []string{"/int/a", "/int/a/1.txt", "/int/b.txt"}, entryNames(t, it, err))

	it, err = s.Walk(ctx, "/int/a")
	assert.Equal(t, []string{"/int/a/1.txt"}, entryNames(t, it, err))

	_, err = s.ReadDir(ctx, "/int/b.txt")
	assert.Equal(t, errors.CodeInvalidInput, provider.Code(err))
}
