package billyfs

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/cloudfs/mountfs/internal/provider"
)

// Kind tells how a mount is backed.
type Kind string

const (
	KindLocal  Kind = "local"
	KindMemory Kind = "memory"
)

// Mount is a go-billy filesystem registered under a mount prefix.
type Mount struct {
	prefix   string
	label    string
	kind     Kind
	root     string // on-disk directory, local mounts only
	capacity uint64 // memory mounts only
	device   string // sysfs-style card identification directory
	bfs      billy.Filesystem
	times    *modTimes // memory mounts only
}

// Option configures a mount.
type Option func(*Mount)

// WithDevice points the mount at a directory holding card identification
// files (manfid, oemid, name, hwrev, fwrev, serial, date), usually
// /sys/block/mmcblk0/device.
func WithDevice(dir string) Option {
	return func(m *Mount) {
		m.device = dir
	}
}

// NewLocal creates a mount backed by the directory root.
// A missing root is not an error: the mount reports not ready until it appears.
func NewLocal(prefix, label, root string, opts ...Option) *Mount {
	m := &Mount{
		prefix: prefix,
		label:  label,
		kind:   KindLocal,
		root:   root,
		bfs:    osfs.New(root),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemory creates an in-memory mount with a fixed capacity in bytes.
func NewMemory(prefix, label string, capacity uint64, opts ...Option) *Mount {
	m := &Mount{
		prefix:   prefix,
		label:    label,
		kind:     KindMemory,
		capacity: capacity,
		bfs:      memfs.New(),
		times:    newModTimes(time.Now),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prefix returns the mount prefix.
func (m *Mount) Prefix() string { return m.prefix }

// Label returns the mount label.
func (m *Mount) Label() string { return m.label }

// Kind returns how the mount is backed.
func (m *Mount) Kind() Kind { return m.kind }

// Root returns the backing directory, empty for memory mounts.
func (m *Mount) Root() string { return m.root }

// Ready reports whether the backing storage is present.
func (m *Mount) Ready() bool {
	if m.kind == KindMemory {
		return true
	}
	info, err := os.Stat(m.root)
	return err == nil && info.IsDir()
}

// modTimes keeps modification times for a memory mount.
// memfs reports the current time for every entry.
type modTimes struct {
	mu      sync.Mutex
	now     func() time.Time
	created time.Time
	times   map[string]time.Time
}

func newModTimes(now func() time.Time) *modTimes {
	return &modTimes{now: now, created: now(), times: make(map[string]time.Time)}
}

// modTime returns the modification time of rel. Local mounts keep the
// time reported by the filesystem.
func (m *Mount) modTime(rel string, fsTime time.Time) time.Time {
	if m.times == nil {
		return fsTime
	}
	m.times.mu.Lock()
	defer m.times.mu.Unlock()
	if t, ok := m.times.times[rel]; ok {
		return t
	}
	return m.times.created
}

// touch marks rel as modified now.
func (m *Mount) touch(rel string) {
	if m.times == nil {
		return
	}
	m.times.mu.Lock()
	defer m.times.mu.Unlock()
	m.times.times[rel] = m.times.now()
}

// moved carries the times of from and everything below it over to to.
func (m *Mount) moved(from, to string) {
	if m.times == nil {
		return
	}
	m.times.mu.Lock()
	defer m.times.mu.Unlock()
	moved := make(map[string]time.Time)
	for rel, t := range m.times.times {
		if within(rel, from) {
			delete(m.times.times, rel)
			moved[to+strings.TrimPrefix(rel, from)] = t
		}
	}
	for rel, t := range moved {
		m.times.times[rel] = t
	}
}

// forget drops the times of rel and everything below it.
func (m *Mount) forget(rel string) {
	if m.times == nil {
		return
	}
	m.times.mu.Lock()
	defer m.times.mu.Unlock()
	for key := range m.times.times {
		if within(key, rel) {
			delete(m.times.times, key)
		}
	}
}

var _ provider.Mount = (*Mount)(nil)
