package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// XattrSetFlag mirrors the POSIX XATTR_CREATE/XATTR_REPLACE flags (spec
// §4.G "setxattr").
type XattrSetFlag int

const (
	XattrUpsert XattrSetFlag = iota
	XattrCreate
	XattrReplace
)

// xattrObjID resolves the KV object identity an xattr record is keyed
// under: a regular file's own backing object id, or the node id itself
// reinterpreted as an ObjID for directories/symlinks, which never have an
// INODE_OID record (spec §3.2 XATTR is keyed by "the object identifying
// the node", and every node — not just regular files — can carry xattrs).
func xattrObjID(kv nsal.KV, id kvs.NodeID) (kvs.ObjID, error) {
	st, err := nsal.LoadStat(kv, id)
	if err != nil {
		return kvs.ObjID{}, err
	}
	if nsal.IsRegular(st.Mode) {
		if oid, err := nsal.InoToOID(kv, id); err == nil {
			return oid, nil
		}
	}
	return kvs.ObjID{Hi: id.Hi, Lo: id.Lo}, nil
}

// Setxattr implements spec §4.G "setxattr": CREATE fails if the name
// already exists, REPLACE fails if it doesn't, the default upserts either
// way. Bumps the node's CTIME.
func (fs *FS) Setxattr(ctx context.Context, cred Cred, id kvs.NodeID, name string, value []byte, flag XattrSetFlag) error {
	if err := validateName(name); err != nil {
		return err
	}
	return fs.withTxn(ctx, func(kv nsal.KV) error {
		st, err := nsal.LoadStat(kv, id)
		if err != nil {
			return err
		}
		if err := Check(cred, st, AccessSetattr); err != nil {
			return err
		}

		oid, err := xattrObjID(kv, id)
		if err != nil {
			return err
		}
		key, err := kvs.XattrKey(oid, name)
		if err != nil {
			return err
		}
		_, getErr := kv.Get(key)
		exists := getErr == nil
		switch flag {
		case XattrCreate:
			if exists {
				return kerr.New(kerr.Exists, "xattr %q already exists", name)
			}
		case XattrReplace:
			if !exists {
				return kerr.New(kerr.NotFound, "xattr %q not found", name)
			}
		}
		if err := kv.Set(key, value); err != nil {
			return err
		}

		now := fs.now()
		if err := st.Amend(nsal.AmendCtime, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, id, st)
	})
}

// Getxattr implements spec §4.G "getxattr": returns BufferTooSmall (rather
// than silently truncating) if maxLen > 0 and the value doesn't fit.
func (fs *FS) Getxattr(ctx context.Context, id kvs.NodeID, name string, maxLen int) ([]byte, error) {
	kv := fs.kv(ctx)
	oid, err := xattrObjID(kv, id)
	if err != nil {
		return nil, err
	}
	key, err := kvs.XattrKey(oid, name)
	if err != nil {
		return nil, err
	}
	val, err := kv.Get(key)
	if err != nil {
		return nil, kerr.Wrap(kerr.NotFound, err, "xattr %q not found", name)
	}
	if maxLen > 0 && len(val) > maxLen {
		return nil, kerr.New(kerr.BufferTooSmall, "getxattr buffer too small for %q", name)
	}
	return val, nil
}

// Listxattr implements spec §4.G "listxattr": a NUL-delimited catalog of
// attribute names, the same wire convention Linux's listxattr(2) uses,
// and the same trailing NUL kvs.EncodeStr256 writes after each name it
// encodes into a key.
func (fs *FS) Listxattr(ctx context.Context, id kvs.NodeID, maxLen int) ([]byte, error) {
	kv := fs.kv(ctx)
	oid, err := xattrObjID(kv, id)
	if err != nil {
		return nil, err
	}

	var out []byte
	prefix := kvs.XattrKeyPrefix(oid)
	it, err := kv.IterFind(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Fini()

	for {
		ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok || !kvs.HasPrefix(it.Key(), prefix) {
			break
		}
		name, err := kvs.XattrNameFromKey(it.Key(), oid)
		if err != nil {
			return nil, err
		}
		out = append(out, name...)
		out = append(out, 0)
	}
	if maxLen > 0 && len(out) > maxLen {
		return nil, kerr.New(kerr.BufferTooSmall, "listxattr buffer too small")
	}
	return out, nil
}

// Removexattr implements spec §4.G "removexattr": NotFound if the name
// doesn't exist, else delete and bump CTIME.
func (fs *FS) Removexattr(ctx context.Context, cred Cred, id kvs.NodeID, name string) error {
	return fs.withTxn(ctx, func(kv nsal.KV) error {
		st, err := nsal.LoadStat(kv, id)
		if err != nil {
			return err
		}
		if err := Check(cred, st, AccessSetattr); err != nil {
			return err
		}

		oid, err := xattrObjID(kv, id)
		if err != nil {
			return err
		}
		key, err := kvs.XattrKey(oid, name)
		if err != nil {
			return err
		}
		if _, err := kv.Get(key); err != nil {
			return kerr.Wrap(kerr.NotFound, err, "xattr %q not found", name)
		}
		if err := kv.Del(key); err != nil {
			return err
		}

		now := fs.now()
		if err := st.Amend(nsal.AmendCtime, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, id, st)
	})
}
