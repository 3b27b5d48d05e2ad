package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// destroyOrphaned implements spec §3.5/§4.I "destroy_orphaned": once
// nlink==0 and no open state references the node, delete its basic attr
// and, for a regular file, its backing object and INODE_OID record; for a
// symlink, its target sys-attr. isOpen short-circuits to a no-op, matching
// "no-op if still open" in spec §4.F's unlink description and §4.I's
// delete-on-close description.
// DestroyOrphaned is destroyOrphaned's exported form, called by package fh
// once the last open share on a node closes (spec §4.I "delete-on-close").
func (fs *FS) DestroyOrphaned(ctx context.Context, id kvs.NodeID, isOpen bool) error {
	return fs.destroyOrphaned(ctx, id, isOpen)
}

func (fs *FS) destroyOrphaned(ctx context.Context, id kvs.NodeID, isOpen bool) error {
	if isOpen {
		return nil
	}

	var oid kvs.ObjID
	var haveOID bool
	err := fs.withTxn(ctx, func(kv nsal.KV) error {
		st, err := nsal.LoadStat(kv, id)
		if err != nil {
			// Already destroyed by a racing caller; treat as success.
			return nil
		}
		if st.Nlink != 0 {
			return nil
		}

		switch {
		case nsal.IsRegular(st.Mode):
			if o, oerr := nsal.InoToOID(kv, id); oerr == nil {
				oid = o
				haveOID = true
				_ = nsal.DelOID(kv, id)
			}
		case nsal.IsSymlink(st.Mode):
			_ = nsal.DelSysAttr(kv, id, kvs.SysAttrSymlink)
		}
		return nsal.DeleteStat(kv, id)
	})
	if err != nil {
		return err
	}

	if haveOID {
		if err := fs.DS.ObjDelete(ctx, oid); err != nil {
			return err
		}
	}
	return nil
}
