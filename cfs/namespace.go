package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// EntryKind is the new-entry kind create_entry accepts (spec §4.F).
type EntryKind int

const (
	EntryRegular EntryKind = iota
	EntryDir
	EntrySymlink
)

func modeBitsFor(kind EntryKind) uint32 {
	switch kind {
	case EntryDir:
		return nsal.ModeDir
	case EntrySymlink:
		return nsal.ModeSymlink
	default:
		return nsal.ModeRegular
	}
}

// CreateEntry implements spec §4.F "create_entry": validate, check for
// collision, allocate an inode, attach the dentry, write the fresh stat,
// and (for symlinks) stash the target, all under one transaction, amending
// the parent's mtime/ctime (and nlink, for a new subdirectory) at the end.
func (fs *FS) CreateEntry(ctx context.Context, cred Cred, parent kvs.NodeID, name string, kind EntryKind, modeIn uint32, target string) (kvs.NodeID, nsal.Stat, error) {
	if err := validateName(name); err != nil {
		return kvs.NodeID{}, nsal.Stat{}, err
	}
	if kind == EntrySymlink && len(target) > pathMax {
		return kvs.NodeID{}, nsal.Stat{}, kerr.New(kerr.NameTooLong, "symlink target exceeds %d bytes", pathMax)
	}

	var newID kvs.NodeID
	var newStat nsal.Stat

	err := fs.withTxn(ctx, func(kv nsal.KV) error {
		if _, err := nsal.Lookup(kv, parent, name); err == nil {
			return kerr.New(kerr.Exists, "entry %q already exists", name)
		}

		ino, err := nsal.NextIno(kv, fs.Tree.Root())
		if err != nil {
			return err
		}
		newID = kvs.NodeID{Hi: fs.Tree.Root().Hi, Lo: ino}

		if err := nsal.Attach(kv, parent, newID, name); err != nil {
			return err
		}

		now := fs.now()
		nlink := uint32(1)
		if kind == EntryDir {
			nlink = 2
		}
		newStat = nsal.Stat{
			Mode:  modeBitsFor(kind) | (modeIn &^ nsal.ModeFmt),
			Nlink: nlink,
			UID:   cred.UID,
			GID:   cred.GID,
			Ino:   ino,
			Atime: now,
			Mtime: now,
			Ctime: now,
		}
		if err := nsal.DumpStat(kv, newID, newStat); err != nil {
			return err
		}

		if kind == EntrySymlink {
			if err := nsal.SetSysAttr(kv, newID, kvs.SysAttrSymlink, []byte(target)); err != nil {
				return err
			}
		}

		parentStat, err := nsal.LoadStat(kv, parent)
		if err != nil {
			return err
		}
		flags := nsal.AmendMtime | nsal.AmendCtime
		if kind == EntryDir {
			flags |= nsal.AmendIncrLink
		}
		if err := parentStat.Amend(flags, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, parent, parentStat)
	})
	if err != nil {
		return kvs.NodeID{}, nsal.Stat{}, err
	}
	return newID, newStat, nil
}

// Lookup resolves (parent, name) to a node id and its stat (spec §4.D/§4.F
// "lookup").
func (fs *FS) Lookup(ctx context.Context, parent kvs.NodeID, name string) (kvs.NodeID, nsal.Stat, error) {
	kv := fs.kv(ctx)
	id, err := nsal.Lookup(kv, parent, name)
	if err != nil {
		return kvs.NodeID{}, nsal.Stat{}, err
	}
	st, err := nsal.LoadStat(kv, id)
	if err != nil {
		return kvs.NodeID{}, nsal.Stat{}, err
	}
	return id, st, nil
}

// UnlinkResult reports which node unlink detached and whether it was left
// behind nlink==0 but kept alive by an open share — the caller (package
// fh) uses Deferred to know it must arm delete-on-close for Node, since
// destroyOrphaned silently no-ops in that case rather than destroying it
// (spec §4.I "delete-on-close").
type UnlinkResult struct {
	Node     kvs.NodeID
	Deferred bool
}

// Unlink implements spec §4.F "unlink": detach, then attempt
// destroy-orphaned (a no-op if the node is still open or still linked).
func (fs *FS) Unlink(ctx context.Context, cred Cred, parent kvs.NodeID, name string, isOpen func(kvs.NodeID) bool) (UnlinkResult, error) {
	var target kvs.NodeID
	var nlinkZero bool
	err := fs.withTxn(ctx, func(kv nsal.KV) error {
		parentStat, err := nsal.LoadStat(kv, parent)
		if err != nil {
			return err
		}
		if err := Check(cred, parentStat, AccessDeleteEntity); err != nil {
			return err
		}

		id, err := nsal.Lookup(kv, parent, name)
		if err != nil {
			return err
		}
		target = id

		if err := nsal.Detach(kv, parent, name); err != nil {
			return err
		}

		now := fs.now()
		targetStat, err := nsal.LoadStat(kv, id)
		if err != nil {
			return err
		}
		if err := targetStat.Amend(nsal.AmendCtime|nsal.AmendDecrLink, nsal.Stat{}, now); err != nil {
			return err
		}
		nlinkZero = targetStat.Nlink == 0
		if err := nsal.DumpStat(kv, id, targetStat); err != nil {
			return err
		}

		if err := parentStat.Amend(nsal.AmendMtime|nsal.AmendCtime, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, parent, parentStat)
	})
	if err != nil {
		return UnlinkResult{}, err
	}

	result := UnlinkResult{Node: target}
	open := nlinkZero && isOpen != nil && isOpen(target)
	result.Deferred = open
	if err := fs.destroyOrphaned(ctx, target, open); err != nil {
		return result, err
	}
	return result, nil
}

// Rmdir implements spec §4.F "rmdir": lookup, NOTEMPTY if the directory has
// children, else transactionally detach, delete the child's basic attr,
// decrement the parent's nlink, and delete the child's INODE_OID (a
// directory never has one, but the delete is a harmless no-op miss).
func (fs *FS) Rmdir(ctx context.Context, cred Cred, parent kvs.NodeID, name string) error {
	return fs.withTxn(ctx, func(kv nsal.KV) error {
		parentStat, err := nsal.LoadStat(kv, parent)
		if err != nil {
			return err
		}
		if err := Check(cred, parentStat, AccessDeleteEntity); err != nil {
			return err
		}

		id, err := nsal.Lookup(kv, parent, name)
		if err != nil {
			return err
		}
		childStat, err := nsal.LoadStat(kv, id)
		if err != nil {
			return err
		}
		if !nsal.IsDir(childStat.Mode) {
			return kerr.New(kerr.Invalid, "rmdir on non-directory %q", name)
		}
		has, err := nsal.HasChildren(ctx, kv, id)
		if err != nil {
			return err
		}
		if has {
			return kerr.New(kerr.NotEmpty, "directory %q not empty", name)
		}

		if err := nsal.Detach(kv, parent, name); err != nil {
			return err
		}
		if err := nsal.DeleteStat(kv, id); err != nil {
			return err
		}
		_ = nsal.DelOID(kv, id)

		now := fs.now()
		if err := parentStat.Amend(nsal.AmendMtime|nsal.AmendCtime|nsal.AmendDecrLink, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, parent, parentStat)
	})
}

// Link implements spec §4.F "link": access-check WRITE on dst_dir,
// disallow an existing dst_name, attach, then amend src CTIME+INCR_LINK
// and dst_dir MTIME+CTIME.
func (fs *FS) Link(ctx context.Context, cred Cred, src kvs.NodeID, dstDir kvs.NodeID, dstName string) error {
	if err := validateName(dstName); err != nil {
		return err
	}
	return fs.withTxn(ctx, func(kv nsal.KV) error {
		dstDirStat, err := nsal.LoadStat(kv, dstDir)
		if err != nil {
			return err
		}
		if err := Check(cred, dstDirStat, AccessWrite); err != nil {
			return err
		}
		if _, err := nsal.Lookup(kv, dstDir, dstName); err == nil {
			return kerr.New(kerr.Exists, "link target %q already exists", dstName)
		}
		if err := nsal.Attach(kv, dstDir, src, dstName); err != nil {
			return err
		}

		now := fs.now()
		srcStat, err := nsal.LoadStat(kv, src)
		if err != nil {
			return err
		}
		if err := srcStat.Amend(nsal.AmendCtime|nsal.AmendIncrLink, nsal.Stat{}, now); err != nil {
			return err
		}
		if err := nsal.DumpStat(kv, src, srcStat); err != nil {
			return err
		}

		if err := dstDirStat.Amend(nsal.AmendMtime|nsal.AmendCtime, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, dstDir, dstDirStat)
	})
}
