// Package kvs is the KVS driver contract (spec §4.A): an ordered key->value
// map on an opened index, with transactions and prefix iteration. It has no
// notion of filesystem semantics; nsal and cfs build those on top of it.
package kvs

import (
	"encoding/binary"
	"fmt"
)

// NodeID is a 128-bit node identifier, split hi/lo per spec §3.1.
type NodeID struct {
	Hi, Lo uint64
}

// RootNodeID is the well-known root of every filesystem tree.
var RootNodeID = NodeID{Hi: 2, Lo: 0}

func (n NodeID) String() string {
	return fmt.Sprintf("%016x%016x", n.Hi, n.Lo)
}

// Ino returns the low 64 bits, which is what gets handed back to NFS callers
// as the inode number.
func (n NodeID) Ino() uint64 { return n.Lo }

func (n NodeID) IsZero() bool { return n.Hi == 0 && n.Lo == 0 }

func (n NodeID) appendTo(b []byte) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], n.Hi)
	binary.BigEndian.PutUint64(buf[8:16], n.Lo)
	return append(b, buf[:]...)
}

// EncodeNodeID returns the 16-byte wire form of n, used as CHILD record
// values (dentry -> child node id).
func EncodeNodeID(n NodeID) []byte {
	return n.appendTo(make([]byte, 0, 16))
}

// DecodeNodeID reads a 16-byte big-endian node id from the front of b,
// returning the remaining bytes.
func DecodeNodeID(b []byte) (NodeID, []byte, error) {
	if len(b) < 16 {
		return NodeID{}, nil, fmt.Errorf("short node id: %d bytes", len(b))
	}
	return NodeID{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}, b[16:], nil
}

// ObjID is a 128-bit data-store object identifier, minted by the DSAL
// backend's NewObjID (spec §3.1, §4.B); dsal.Backend notes how each
// backend mints it.
type ObjID struct {
	Hi, Lo uint64
}

func (o ObjID) String() string {
	return fmt.Sprintf("%016x%016x", o.Hi, o.Lo)
}

func (o ObjID) IsZero() bool { return o.Hi == 0 && o.Lo == 0 }

func (o ObjID) appendTo(b []byte) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], o.Hi)
	binary.BigEndian.PutUint64(buf[8:16], o.Lo)
	return append(b, buf[:]...)
}

// DecodeObjID reads a 16-byte big-endian object id from the front of b.
func DecodeObjID(b []byte) (ObjID, []byte, error) {
	if len(b) < 16 {
		return ObjID{}, nil, fmt.Errorf("short obj id: %d bytes", len(b))
	}
	return ObjID{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}, b[16:], nil
}

// EncodeObjID returns the 16-byte wire form of o, used both as KVS values
// (INODE_OID records) and as DSAL backend object names.
func EncodeObjID(o ObjID) []byte {
	return o.appendTo(make([]byte, 0, 16))
}
