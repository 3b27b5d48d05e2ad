package nsal

import (
	"errors"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
)

// LoadStat reads the basic-attribute record for id (spec §4.C "load").
// NotFound if no live node exists at id.
func LoadStat(kv KV, id kvs.NodeID) (Stat, error) {
	raw, err := kv.Get(kvs.BasicAttrKey(id))
	if err != nil {
		return Stat{}, kerr.Wrap(kerr.NotFound, err, "load basic attr for %s", id)
	}
	st, err := decodeStat(raw)
	if err != nil {
		return Stat{}, kerr.Wrap(kerr.Invalid, err, "decode basic attr for %s", id)
	}
	return st, nil
}

// DumpStat writes (creates or overwrites) the basic-attribute record for
// id (spec §4.C "init"+"dump" collapsed: Go has no separate in-memory
// constructor step, the caller just builds a Stat value and dumps it).
func DumpStat(kv KV, id kvs.NodeID, st Stat) error {
	if err := kv.Set(kvs.BasicAttrKey(id), encodeStat(st)); err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "dump basic attr for %s", id)
	}
	return nil
}

// DeleteStat removes the basic-attribute record for id. NotFound if absent
// (spec §4.C "NOENT on load/delete of non-existent node").
func DeleteStat(kv KV, id kvs.NodeID) error {
	if err := kv.Del(kvs.BasicAttrKey(id)); err != nil {
		return kerr.Wrap(kerr.NotFound, err, "delete basic attr for %s", id)
	}
	return nil
}

// SetSysAttr writes a sub-typed system-attribute record (spec §4.C). An
// empty buf is rejected per spec ("INVAL on empty buffer").
func SetSysAttr(kv KV, id kvs.NodeID, sub kvs.SysAttrType, buf []byte) error {
	if len(buf) == 0 {
		return kerr.New(kerr.Invalid, "empty sys-attr buffer for %s sub-type %d", id, sub)
	}
	if err := kv.Set(kvs.SysAttrKey(id, sub), buf); err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "set sys attr for %s", id)
	}
	return nil
}

func GetSysAttr(kv KV, id kvs.NodeID, sub kvs.SysAttrType) ([]byte, error) {
	buf, err := kv.Get(kvs.SysAttrKey(id, sub))
	if err != nil {
		return nil, kerr.Wrap(kerr.NotFound, err, "get sys attr for %s", id)
	}
	return buf, nil
}

func DelSysAttr(kv KV, id kvs.NodeID, sub kvs.SysAttrType) error {
	if err := kv.Del(kvs.SysAttrKey(id, sub)); err != nil {
		return kerr.Wrap(kerr.NotFound, err, "del sys attr for %s", id)
	}
	return nil
}

// InoToOID resolves the inode->object map (spec §4.G).
func InoToOID(kv KV, id kvs.NodeID) (kvs.ObjID, error) {
	raw, err := kv.Get(kvs.InodeOIDKey(id))
	if err != nil {
		return kvs.ObjID{}, kerr.Wrap(kerr.NotFound, err, "ino->oid for %s", id)
	}
	oid, _, err := kvs.DecodeObjID(raw)
	if err != nil {
		return kvs.ObjID{}, kerr.Wrap(kerr.Invalid, err, "decode oid for %s", id)
	}
	return oid, nil
}

func SetInoOID(kv KV, id kvs.NodeID, oid kvs.ObjID) error {
	if err := kv.Set(kvs.InodeOIDKey(id), kvs.EncodeObjID(oid)); err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "set ino->oid for %s", id)
	}
	return nil
}

func DelOID(kv KV, id kvs.NodeID) error {
	if err := kv.Del(kvs.InodeOIDKey(id)); err != nil {
		return kerr.Wrap(kerr.NotFound, err, "del ino->oid for %s", id)
	}
	return nil
}

// NextIno allocates the next inode number for the FS rooted at root,
// enforcing spec §3.4 invariant 4 (monotonically non-decreasing counter,
// incremented under the same transaction that attaches the new node —
// enforced by the caller passing a txn-backed KV here).
func NextIno(kv KV, root kvs.NodeID) (uint64, error) {
	key := kvs.InoGenKey(root)
	raw, err := kv.Get(key)
	var next uint64
	if err != nil {
		// First allocation: root itself occupies ino 0 conceptually, user
		// inodes start at 1.
		next = 1
	} else {
		cur, derr := decodeU64(raw)
		if derr != nil {
			return 0, kerr.Wrap(kerr.Invalid, derr, "decode inode counter")
		}
		next = cur + 1
	}
	if err := kv.Set(key, encodeU64(next)); err != nil {
		return 0, kerr.Wrap(kerr.BackendTransient, err, "write inode counter")
	}
	return next, nil
}

func decodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.New("nsal: bad inode counter width")
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
