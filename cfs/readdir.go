package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// firstUserCookie reserves cookies 0-2 for "." and ".." (NFS convention);
// the first real entry is cookie 3 (spec §4.F readdir cookie semantics).
const firstUserCookie = 3

// DirEntry is one entry handed to a Readdir callback.
type DirEntry struct {
	Name   string
	Child  kvs.NodeID
	Stat   nsal.Stat
	Cookie uint64
}

// ReaddirFunc is invoked once per entry at or after the requested starting
// cookie; returning false stops iteration early with eof=false.
type ReaddirFunc func(entry DirEntry) (bool, error)

// Readdir implements spec §4.F "readdir": access-check LIST_DIR, then
// iter_children on dir starting from cookie, invoking cb per entry with
// the child's stat. After successful iteration to natural end, amends
// dir's ATIME.
func (fs *FS) Readdir(ctx context.Context, cred Cred, dir kvs.NodeID, cookie uint64, cb ReaddirFunc) (eof bool, err error) {
	kv := fs.kv(ctx)

	dirStat, err := nsal.LoadStat(kv, dir)
	if err != nil {
		return false, err
	}
	if err := Check(cred, dirStat, AccessListDir); err != nil {
		return false, err
	}
	if cookie < firstUserCookie {
		cookie = firstUserCookie
	}

	next := uint64(firstUserCookie)
	stopped := false
	var iterErr error
	err = nsal.IterChildren(ctx, kv, dir, func(name string, child kvs.NodeID) (bool, error) {
		c := next
		next++
		if c < cookie {
			return true, nil
		}
		childStat, lerr := nsal.LoadStat(kv, child)
		if lerr != nil {
			iterErr = lerr
			return false, nil
		}
		cont, cerr := cb(DirEntry{Name: name, Child: child, Stat: childStat, Cookie: c})
		if cerr != nil {
			iterErr = cerr
			return false, nil
		}
		if !cont {
			stopped = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if iterErr != nil {
		return false, iterErr
	}
	if stopped {
		return false, nil
	}

	now := fs.now()
	if err := dirStat.Amend(nsal.AmendAtime, nsal.Stat{}, now); err != nil {
		return true, err
	}
	_ = nsal.DumpStat(kv, dir, dirStat)
	return true, nil
}
