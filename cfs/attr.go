package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// SetattrArgs carries the subset of fields a setattr call wants to change;
// a nil pointer means "leave as is" (spec §4.G "setattr").
type SetattrArgs struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *int64
	Atime *nsal.Timespec
	Mtime *nsal.Timespec
}

// Getattr implements spec §4.G "getattr": a plain stat load, no access
// check of its own (callers gate getattr on having resolved the node at
// all, per spec §4.F lookup already having checked directory search
// permission on the path to it).
func (fs *FS) Getattr(ctx context.Context, id kvs.NodeID) (nsal.Stat, error) {
	return nsal.LoadStat(fs.kv(ctx), id)
}

// Setattr implements spec §4.G "setattr": merge the requested fields into
// the node's stat and bump CTIME, under a transaction. A Size change is
// delegated to Truncate instead of being folded in here directly, since it
// also has to resize the backing DSAL object (spec §4.G: "when SIZE is
// given, delegate to the data-path"); SIZE_ATTACH is reserved and
// unsupported.
func (fs *FS) Setattr(ctx context.Context, cred Cred, id kvs.NodeID, args SetattrArgs) (nsal.Stat, error) {
	if args.Size != nil {
		st, err := fs.Truncate(ctx, cred, id, *args.Size)
		if err != nil {
			return nsal.Stat{}, err
		}
		args.Size = nil
		if args.Mode == nil && args.UID == nil && args.GID == nil && args.Atime == nil && args.Mtime == nil {
			return st, nil
		}
	}

	var result nsal.Stat
	err := fs.withTxn(ctx, func(kv nsal.KV) error {
		st, err := nsal.LoadStat(kv, id)
		if err != nil {
			return err
		}
		if err := Check(cred, st, AccessSetattr); err != nil {
			return err
		}

		var flags nsal.AmendFlag
		var patch nsal.Stat
		if args.Mode != nil {
			flags |= nsal.AmendMode
			patch.Mode = (st.Mode & nsal.ModeFmt) | (*args.Mode &^ nsal.ModeFmt)
		}
		if args.UID != nil {
			flags |= nsal.AmendUID
			patch.UID = *args.UID
		}
		if args.GID != nil {
			flags |= nsal.AmendGID
			patch.GID = *args.GID
		}
		if args.Atime != nil {
			flags |= nsal.AmendAtime
			patch.Atime = *args.Atime
		}
		if args.Mtime != nil {
			flags |= nsal.AmendMtime
			patch.Mtime = *args.Mtime
		}
		flags |= nsal.AmendCtime

		now := fs.now()
		if err := st.Amend(flags, patch, now); err != nil {
			return err
		}
		if err := nsal.DumpStat(kv, id, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nsal.Stat{}, err
	}
	return result, nil
}

// Truncate implements spec §4.H "truncate": resolve the node's backing
// object (regular files only), resize it through the DSAL backend, and
// fold the new size/block count into the stat with MTIME/CTIME bumped.
func (fs *FS) Truncate(ctx context.Context, cred Cred, id kvs.NodeID, newSize int64) (nsal.Stat, error) {
	var result nsal.Stat
	var oid kvs.ObjID
	var oldSize int64

	err := fs.withTxn(ctx, func(kv nsal.KV) error {
		st, err := nsal.LoadStat(kv, id)
		if err != nil {
			return err
		}
		if !nsal.IsRegular(st.Mode) {
			return kerr.New(kerr.Invalid, "truncate on non-regular node %d", st.Ino)
		}
		if err := Check(cred, st, AccessWrite); err != nil {
			return err
		}

		o, err := resolveOID(kv, id)
		if err != nil {
			return err
		}
		oid = o
		oldSize = st.Size

		now := fs.now()
		if err := st.Amend(nsal.AmendMtime|nsal.AmendCtime|nsal.AmendSize, nsal.Stat{Size: newSize}, now); err != nil {
			return err
		}
		if err := nsal.DumpStat(kv, id, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nsal.Stat{}, err
	}

	h, err := fs.DS.ObjOpen(ctx, oid)
	if err != nil {
		return nsal.Stat{}, err
	}
	defer fs.DS.ObjClose(ctx, h)

	if err := fs.DS.Resize(ctx, h, oldSize, newSize); err != nil {
		return nsal.Stat{}, err
	}
	return result, nil
}
