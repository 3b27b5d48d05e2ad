package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// pathMax bounds a symlink target, matching POSIX PATH_MAX (spec §4.F
// "target path (<= PATH_MAX)").
const pathMax = 4096

// Symlink implements spec §4.F "symlink": create_entry(kind=LNK, target).
func (fs *FS) Symlink(ctx context.Context, cred Cred, parent kvs.NodeID, name, target string) (kvs.NodeID, nsal.Stat, error) {
	return fs.CreateEntry(ctx, cred, parent, name, EntrySymlink, 0o777, target)
}

// Readlink implements spec §4.F "readlink": load node, amend ATIME, read
// the symlink sys-attr. If maxLen > 0 and the target (plus its trailing
// NUL) would not fit, returns BufferTooSmall instead of truncating.
func (fs *FS) Readlink(ctx context.Context, id kvs.NodeID, maxLen int) (string, error) {
	kv := fs.kv(ctx)
	st, err := nsal.LoadStat(kv, id)
	if err != nil {
		return "", err
	}
	if !nsal.IsSymlink(st.Mode) {
		return "", kerr.New(kerr.Invalid, "readlink on non-symlink node %s", id)
	}
	target, err := nsal.GetSysAttr(kv, id, kvs.SysAttrSymlink)
	if err != nil {
		return "", err
	}
	if maxLen > 0 && len(target)+1 > maxLen {
		return "", kerr.New(kerr.BufferTooSmall, "readlink buffer too small for %s", id)
	}

	now := fs.now()
	if err := st.Amend(nsal.AmendAtime, nsal.Stat{}, now); err != nil {
		return "", err
	}
	_ = nsal.DumpStat(kv, id, st)

	return string(target), nil
}
