package billyfs

import "github.com/cloudfs/mountfs/internal/provider"

// sliceIterator serves entries collected up front.
type sliceIterator struct {
	entries []provider.FileInfo
	pos     int
	err     error
	closed  bool
}

func (it *sliceIterator) Next() (provider.FileInfo, bool) {
	if it.closed || it.err != nil || it.pos >= len(it.entries) {
		return provider.FileInfo{}, false
	}
	info := it.entries[it.pos]
	it.pos++
	return info, true
}

func (it *sliceIterator) Err() error { return it.err }

func (it *sliceIterator) Close() error {
	it.closed = true
	it.entries = nil
	return nil
}

var _ provider.DirIterator = (*sliceIterator)(nil)
