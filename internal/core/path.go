package core

import (
	"strings"

	"github.com/samber/lo"

	"github.com/cloudfs/mountfs/internal/provider"
)

// PathKind classifies a request path before it reaches the backend.
type PathKind int

const (
	// PathOther is anything outside the mount prefixes; the backend decides.
	PathOther PathKind = iota
	// PathRoot is the "/" listing sentinel.
	PathRoot
	// PathMountRoot is exactly one of /int, /ext or /any.
	PathMountRoot
	// PathInMount lies below a mount prefix.
	PathInMount
)

// ClassifyPath reports which kind of path p is.
func ClassifyPath(p string) PathKind {
	switch {
	case p == provider.RootPath:
		return PathRoot
	case lo.Contains(provider.MountPrefixes, p):
		return PathMountRoot
	case lo.SomeBy(provider.MountPrefixes, func(prefix string) bool {
		return strings.HasPrefix(p, prefix+"/")
	}):
		return PathInMount
	default:
		return PathOther
	}
}
