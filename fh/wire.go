// Package fh implements the file-handle and open/share-reservation state
// layer (spec §4.I, §6): the opaque FH blob exchanged with the NFS host,
// and the per-node share-reservation and open-state bookkeeping that
// arbitrates concurrent opens against one node.
//
// Grounded on the teacher's fs/dir_handle.go for the "handle wraps an
// inode plus small mutable bookkeeping, guarded by an invariant mutex"
// shape, and the lease package's open/release naming for the open-state
// lifecycle (lease.ReadLease/FileLease Upgrade/Downgrade/Revoke map onto
// this package's CLOSED/OPEN state transitions).
package fh

import (
	"encoding/binary"
	"fmt"

	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// maxWireSize bounds the serialized FH, matching spec §6 "opaque blob of
// fixed maximum size."
const maxWireSize = 2 + 16 + 256

// FH is the in-process representation of a file handle: enough to
// identify a node within a specific namespace, plus a cached stat so a
// caller can serve getattr-adjacent questions (MD-cache hit) without a KV
// round trip (spec §4.I "FH... carries (fs_id, node_id, cached stat)").
type FH struct {
	FsID uint16
	Node kvs.NodeID
	Stat nsal.Stat
}

// FromIno builds an FH for id within fsID, with st as evidence already in
// hand (typically freshly loaded by a lookup/create caller) rather than
// re-reading it — callers that don't have a stat handy should Getattr
// first (spec §4.I "from_ino").
func FromIno(fsID uint16, id kvs.NodeID, st nsal.Stat) FH {
	return FH{FsID: fsID, Node: id, Stat: st}
}

// GetRoot builds the FH for fsID's root node.
func GetRoot(fsID uint16, rootStat nsal.Stat) FH {
	return FromIno(fsID, kvs.RootNodeID, rootStat)
}

func (h FH) Ino() kvs.NodeID { return h.Node }

// Key returns a byte slice suitable as an MD-cache hash-map key: fs_id
// plus node_id only, deliberately excluding the cached stat so that two
// FH values referring to the same node but carrying differently-stale
// stats still collide to one cache entry (spec §6 "identical FHs produce
// byte-identical keys").
func (h FH) Key() []byte {
	b := make([]byte, 0, 2+16)
	var fid [2]byte
	binary.BigEndian.PutUint16(fid[:], h.FsID)
	b = append(b, fid[:]...)
	b = append(b, kvs.EncodeNodeID(h.Node)...)
	return b
}

// Serialize renders the wire form: fs_id(2) | node_id(16) | serialized
// stat (spec §6 "FH wire format").
func (h FH) Serialize() []byte {
	b := make([]byte, 0, maxWireSize)
	var fid [2]byte
	binary.BigEndian.PutUint16(fid[:], h.FsID)
	b = append(b, fid[:]...)
	b = append(b, kvs.EncodeNodeID(h.Node)...)
	b = append(b, nsal.EncodeStat(h.Stat)...)
	return b
}

// Deserialize parses the wire form produced by Serialize. Any other
// digest type/layout is a caller bug surfaced as SERVERFAULT by the NFS
// host layer (spec §6 "other digest types return SERVERFAULT") — this
// layer just reports a plain error for the host to map.
func Deserialize(b []byte) (FH, error) {
	if len(b) < 2+16 {
		return FH{}, fmt.Errorf("fh: handle too short: %d bytes", len(b))
	}
	fsID := binary.BigEndian.Uint16(b[0:2])
	node, rest, err := kvs.DecodeNodeID(b[2:])
	if err != nil {
		return FH{}, err
	}
	st, err := nsal.DecodeStat(rest)
	if err != nil {
		return FH{}, err
	}
	return FH{FsID: fsID, Node: node, Stat: st}, nil
}
