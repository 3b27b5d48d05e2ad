package cfs

import (
	"context"
	"time"

	"github.com/kvsfs/kvsfs/internal/metrics"
	"github.com/kvsfs/kvsfs/internal/tracing"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// Traced decorates an *FS so every exported operation runs inside an
// OpenTelemetry span and reports its outcome and latency to Prometheus,
// mirroring the teacher's internal/fs/wrappers decorator that sits between
// fuseutil.FileSystem and the real fs.FileSystem implementation (one span
// and one metric observation per op, named after the op itself).
type Traced struct {
	*FS
	Metrics *metrics.Metrics
}

// NewTraced wraps fs so its operations are observable. metricsSink may be
// nil, in which case only tracing spans are recorded.
func NewTraced(fs *FS, metricsSink *metrics.Metrics) *Traced {
	return &Traced{FS: fs, Metrics: metricsSink}
}

func (t *Traced) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, end := tracing.Span(ctx, "cfs."+op)
	err := fn(ctx)
	end(err)
	if t.Metrics != nil {
		t.Metrics.ObserveCFSOp(op, start, err)
	}
	return err
}

func (t *Traced) CreateEntry(ctx context.Context, cred Cred, parent kvs.NodeID, name string, kind EntryKind, modeIn uint32, target string) (id kvs.NodeID, st nsal.Stat, err error) {
	err = t.observe(ctx, "CreateEntry", func(ctx context.Context) error {
		id, st, err = t.FS.CreateEntry(ctx, cred, parent, name, kind, modeIn, target)
		return err
	})
	return
}

func (t *Traced) Lookup(ctx context.Context, parent kvs.NodeID, name string) (id kvs.NodeID, st nsal.Stat, err error) {
	err = t.observe(ctx, "Lookup", func(ctx context.Context) error {
		id, st, err = t.FS.Lookup(ctx, parent, name)
		return err
	})
	return
}

func (t *Traced) Unlink(ctx context.Context, cred Cred, parent kvs.NodeID, name string, isOpen func(kvs.NodeID) bool) (res UnlinkResult, err error) {
	err = t.observe(ctx, "Unlink", func(ctx context.Context) error {
		res, err = t.FS.Unlink(ctx, cred, parent, name, isOpen)
		return err
	})
	return
}

func (t *Traced) Rmdir(ctx context.Context, cred Cred, parent kvs.NodeID, name string) error {
	return t.observe(ctx, "Rmdir", func(ctx context.Context) error {
		return t.FS.Rmdir(ctx, cred, parent, name)
	})
}

func (t *Traced) Link(ctx context.Context, cred Cred, src kvs.NodeID, dstDir kvs.NodeID, dstName string) error {
	return t.observe(ctx, "Link", func(ctx context.Context) error {
		return t.FS.Link(ctx, cred, src, dstDir, dstName)
	})
}

func (t *Traced) Rename(ctx context.Context, cred Cred, srcDir kvs.NodeID, srcName string, dstDir kvs.NodeID, dstName string, isDstOpen func(kvs.NodeID) bool) (res RenameResult, err error) {
	err = t.observe(ctx, "Rename", func(ctx context.Context) error {
		res, err = t.FS.Rename(ctx, cred, srcDir, srcName, dstDir, dstName, isDstOpen)
		return err
	})
	return
}

func (t *Traced) Readdir(ctx context.Context, cred Cred, dir kvs.NodeID, cookie uint64, cb ReaddirFunc) (eof bool, err error) {
	err = t.observe(ctx, "Readdir", func(ctx context.Context) error {
		eof, err = t.FS.Readdir(ctx, cred, dir, cookie, cb)
		return err
	})
	return
}

func (t *Traced) Getattr(ctx context.Context, id kvs.NodeID) (st nsal.Stat, err error) {
	err = t.observe(ctx, "Getattr", func(ctx context.Context) error {
		st, err = t.FS.Getattr(ctx, id)
		return err
	})
	return
}

func (t *Traced) Setattr(ctx context.Context, cred Cred, id kvs.NodeID, args SetattrArgs) (st nsal.Stat, err error) {
	err = t.observe(ctx, "Setattr", func(ctx context.Context) error {
		st, err = t.FS.Setattr(ctx, cred, id, args)
		return err
	})
	return
}

func (t *Traced) Truncate(ctx context.Context, cred Cred, id kvs.NodeID, newSize int64) (st nsal.Stat, err error) {
	err = t.observe(ctx, "Truncate", func(ctx context.Context) error {
		st, err = t.FS.Truncate(ctx, cred, id, newSize)
		return err
	})
	return
}

func (t *Traced) Read(ctx context.Context, cred Cred, id kvs.NodeID, offset int64, count int) (data []byte, eof bool, err error) {
	err = t.observe(ctx, "Read", func(ctx context.Context) error {
		data, eof, err = t.FS.Read(ctx, cred, id, offset, count)
		return err
	})
	return
}

func (t *Traced) Write(ctx context.Context, cred Cred, id kvs.NodeID, offset int64, buf []byte) (n int, err error) {
	err = t.observe(ctx, "Write", func(ctx context.Context) error {
		n, err = t.FS.Write(ctx, cred, id, offset, buf)
		return err
	})
	return
}

func (t *Traced) Symlink(ctx context.Context, cred Cred, parent kvs.NodeID, name, target string) (id kvs.NodeID, st nsal.Stat, err error) {
	err = t.observe(ctx, "Symlink", func(ctx context.Context) error {
		id, st, err = t.FS.Symlink(ctx, cred, parent, name, target)
		return err
	})
	return
}

func (t *Traced) Readlink(ctx context.Context, id kvs.NodeID, maxLen int) (target string, err error) {
	err = t.observe(ctx, "Readlink", func(ctx context.Context) error {
		target, err = t.FS.Readlink(ctx, id, maxLen)
		return err
	})
	return
}

func (t *Traced) Setxattr(ctx context.Context, cred Cred, id kvs.NodeID, name string, value []byte, flag XattrSetFlag) error {
	return t.observe(ctx, "Setxattr", func(ctx context.Context) error {
		return t.FS.Setxattr(ctx, cred, id, name, value, flag)
	})
}

func (t *Traced) Getxattr(ctx context.Context, id kvs.NodeID, name string, maxLen int) (value []byte, err error) {
	err = t.observe(ctx, "Getxattr", func(ctx context.Context) error {
		value, err = t.FS.Getxattr(ctx, id, name, maxLen)
		return err
	})
	return
}

func (t *Traced) Listxattr(ctx context.Context, id kvs.NodeID, maxLen int) (names []byte, err error) {
	err = t.observe(ctx, "Listxattr", func(ctx context.Context) error {
		names, err = t.FS.Listxattr(ctx, id, maxLen)
		return err
	})
	return
}

func (t *Traced) Removexattr(ctx context.Context, cred Cred, id kvs.NodeID, name string) error {
	return t.observe(ctx, "Removexattr", func(ctx context.Context) error {
		return t.FS.Removexattr(ctx, cred, id, name)
	})
}
