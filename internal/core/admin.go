package core

import (
	"context"

	"github.com/cloudfs/mountfs/internal/model"
	"github.com/cloudfs/mountfs/internal/provider"
)

// treeRoots are the mounts walked by "tree /". /any is an alias and is skipped.
var treeRoots = []string{provider.IntPathPrefix, provider.ExtPathPrefix}

func (d *Dispatcher) info(ctx context.Context, req model.Request) {
	switch req.Path {
	case provider.IntPathPrefix:
		fsInfo, err := d.storage.FSInfo(ctx, req.Path)
		if err != nil {
			d.out.storageError(err)
			return
		}
		d.out.line("Label: %s", d.deviceName)
		d.out.line("Type: %s", fsInfo.FSType)
		d.out.line("%dKiB total", fsInfo.TotalBytes/1024)
		d.out.line("%dKiB free", fsInfo.FreeBytes/1024)

	case provider.ExtPathPrefix:
		sd, err := d.storage.SDInfo(ctx)
		if err != nil {
			d.out.storageError(err)
			return
		}
		d.out.line("Label: %s", sd.Label)
		d.out.line("Type: %s", sd.FSType)
		d.out.line("%dKiB total", sd.KiBTotal)
		d.out.line("%dKiB free", sd.KiBFree)
		d.out.line("%02x%s %s v%d.%d",
			sd.ManufacturerID, sd.OEMID, sd.ProductName, sd.RevisionMajor, sd.RevisionMinor)
		d.out.line("SN:%04x %02d/%d", sd.SerialNumber, sd.ManufacturingMonth, sd.ManufacturingYear)

	default:
		d.out.usage()
	}
}

func (d *Dispatcher) format(ctx context.Context, req model.Request) {
	switch req.Path {
	case provider.IntPathPrefix:
		d.out.storageError(provider.ErrNotImplemented("format", req.Path))

	case provider.ExtPathPrefix:
		d.out.line("Formatting SD card, All data will be lost! Are you sure (y/n)?")
		if !d.confirm(ctx) {
			d.log.Info("format cancelled", "request_id", req.ID)
			d.out.line("Cancelled.")
			return
		}
		d.out.line("Formatting, please wait...")
		if err := d.storage.Format(ctx, req.Path); err != nil {
			d.out.storageError(err)
			return
		}
		d.out.line("SD card was successfully formatted.")

	default:
		d.out.usage()
	}
}

func (d *Dispatcher) list(ctx context.Context, req model.Request) {
	switch ClassifyPath(req.Path) {
	case PathRoot:
		for _, prefix := range provider.MountPrefixes {
			d.out.line("\t[D] %s", prefix[1:])
		}
	case PathMountRoot, PathInMount:
		d.listDir(ctx, req.Path)
	default:
		d.out.usage()
	}
}

func (d *Dispatcher) listDir(ctx context.Context, p string) {
	it, err := d.storage.ReadDir(ctx, p)
	if err != nil {
		d.out.storageError(err)
		return
	}
	defer it.Close()

	empty := true
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		empty = false
		d.printEntry(entry)
	}
	if err := it.Err(); err != nil {
		d.out.storageError(err)
		return
	}
	if empty {
		d.out.line("\tEmpty")
	}
}

func (d *Dispatcher) tree(ctx context.Context, req model.Request) {
	if req.Path != provider.RootPath {
		d.walk(ctx, req.Path)
		return
	}
	for _, root := range treeRoots {
		d.walk(ctx, root)
	}
}

// walk prints every entry below p with its full path.
func (d *Dispatcher) walk(ctx context.Context, p string) {
	it, err := d.storage.Walk(ctx, p)
	if err != nil {
		d.out.storageError(err)
		return
	}
	defer it.Close()

	empty := true
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		empty = false
		d.printEntry(entry)
	}
	if err := it.Err(); err != nil {
		d.out.storageError(err)
		return
	}
	if empty {
		d.out.line("\tEmpty")
	}
}

func (d *Dispatcher) printEntry(entry provider.FileInfo) {
	if entry.IsDir {
		d.out.line("\t[D] %s", entry.Name)
		return
	}
	d.out.line("\t[F] %s %db", entry.Name, entry.Size)
}

// twoPath builds the handler of a command whose arguments hold a second path.
func (d *Dispatcher) twoPath(op func(ctx context.Context, oldPath, newPath string) error) handler {
	return func(ctx context.Context, req model.Request) {
		newPath, _, res := NextPathToken(req.Args)
		if res != TokenOK {
			d.out.usage()
			return
		}
		if err := op(ctx, req.Path, newPath); err != nil {
			d.out.storageError(err)
		}
	}
}

func (d *Dispatcher) remove(ctx context.Context, req model.Request) {
	if err := d.storage.Remove(ctx, req.Path); err != nil {
		d.out.storageError(err)
	}
}

func (d *Dispatcher) mkdir(ctx context.Context, req model.Request) {
	if err := d.storage.Mkdir(ctx, req.Path); err != nil {
		d.out.storageError(err)
	}
}

func (d *Dispatcher) md5(ctx context.Context, req model.Request) {
	sum, err := d.storage.MD5(ctx, req.Path)
	if err != nil {
		d.out.storageError(err)
		return
	}
	d.out.line("%s", sum)
}

func (d *Dispatcher) stat(ctx context.Context, req model.Request) {
	switch ClassifyPath(req.Path) {
	case PathRoot:
		d.out.line("Storage")
	case PathMountRoot:
		fsInfo, err := d.storage.FSInfo(ctx, req.Path)
		if err != nil {
			d.out.storageError(err)
			return
		}
		d.out.line("Storage, %dKiB total, %dKiB free", fsInfo.TotalBytes/1024, fsInfo.FreeBytes/1024)
	default:
		info, err := d.storage.Stat(ctx, req.Path)
		if err != nil {
			d.out.storageError(err)
			return
		}
		if info.IsDir {
			d.out.line("Directory")
		} else {
			d.out.line("File, size: %db", info.Size)
		}
	}
}

func (d *Dispatcher) timestamp(ctx context.Context, req model.Request) {
	ts, err := d.storage.Timestamp(ctx, req.Path)
	if err != nil {
		d.out.line("Invalid arguments")
		return
	}
	d.out.line("Timestamp %d", ts)
}
