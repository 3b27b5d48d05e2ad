// Package nsal is the namespace abstraction layer: KV-Node (spec §4.C) and
// KV-Tree (spec §4.D) built on top of package kvs, plus the namespace/index
// lifecycle (spec §4.E). It has no POSIX operation semantics of its own —
// package cfs builds those on top of the tree this package maintains.
//
// Grounded on the teacher's fs/inode package: inode.DirInode and
// inode.FileInode wrap a GCS-backed "core" object behind basic-attribute
// bookkeeping the same way nsal.Node wraps a KV-backed record here, and
// fs/inode/dir.go's child-listing logic is the direct model for
// Tree.IterChildren.
package nsal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/kvsfs/kvsfs/kerr"
)

// DevBsize is the block size used to compute st_blocks from st_size (spec
// §3.3), matching the teacher's fixed 4KiB GCS read/write chunking choice
// in gcsproxy rather than inventing a new constant.
const DevBsize = 4096

// Timespec is a nanosecond-resolution timestamp triple (spec §3.3).
type Timespec struct {
	Sec  int64
	Nsec int64
}

func TimespecFromTime(t time.Time) Timespec {
	return Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

func (ts Timespec) Time() time.Time { return time.Unix(ts.Sec, ts.Nsec) }

// AmendFlag composes which Stat fields an Amend call should update (spec
// §3.3).
type AmendFlag uint32

const (
	AmendAtime AmendFlag = 1 << iota
	AmendMtime
	AmendCtime
	AmendIncrLink
	AmendDecrLink
	AmendSize
	AmendUID
	AmendGID
	AmendMode
	AmendSizeAttach // reserved, currently unsupported (spec §4.G)
)

const maxNlink = 1<<32 - 1

// Stat is the POSIX-shaped basic attribute record stored once per live
// node (spec §3.2 BASIC_ATTR, §3.3).
type Stat struct {
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  int64
	Blocks int64
	Atime Timespec
	Mtime Timespec
	Ctime Timespec
	Ino   uint64
}

// Amend applies flags to st using the fields carried in patch, enforcing
// the nlink bounds from spec §3.3 ("incrementing past the platform limit
// must fail with INVALID; decrementing below 0 must fail").
func (st *Stat) Amend(flags AmendFlag, patch Stat, now Timespec) error {
	if flags&AmendAtime != 0 {
		st.Atime = now
	}
	if flags&AmendMtime != 0 {
		st.Mtime = now
	}
	if flags&AmendCtime != 0 {
		st.Ctime = now
	}
	if flags&AmendIncrLink != 0 {
		if st.Nlink == maxNlink {
			return kerr.New(kerr.Invalid, "nlink overflow on node %d", st.Ino)
		}
		st.Nlink++
	}
	if flags&AmendDecrLink != 0 {
		if st.Nlink == 0 {
			return kerr.New(kerr.Invalid, "nlink underflow on node %d", st.Ino)
		}
		st.Nlink--
	}
	if flags&AmendSize != 0 {
		st.Size = patch.Size
		st.Blocks = blocksFor(patch.Size)
	}
	if flags&AmendUID != 0 {
		st.UID = patch.UID
	}
	if flags&AmendGID != 0 {
		st.GID = patch.GID
	}
	if flags&AmendMode != 0 {
		st.Mode = patch.Mode
	}
	return nil
}

func blocksFor(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (size + DevBsize - 1) / DevBsize
}

// StatWireSize is the fixed encoded length of a Stat, which is also the
// length of the "serialized stat" tail of a file handle (spec §6 "FH wire
// format").
const StatWireSize = statWireSize

// EncodeStat/DecodeStat give Stat a fixed-width wire form, used both for
// BASIC_ATTR records and as the cached-stat tail of a file handle (spec §6).
// This is plain struct-packing against a spec-fixed layout, the same
// reason kvs/ids.go uses encoding/binary rather than a serialization
// library.
const statWireSize = 4 + 4 + 4 + 4 + 8 + 8 + (8+8)*3 + 8

func EncodeStat(st Stat) []byte { return encodeStat(st) }
func DecodeStat(b []byte) (Stat, error) { return decodeStat(b) }

func encodeStat(st Stat) []byte {
	b := make([]byte, 0, statWireSize)
	var tmp [8]byte
	putU32 := func(v uint32) {
		binary.BigEndian.PutUint32(tmp[:4], v)
		b = append(b, tmp[:4]...)
	}
	putI64 := func(v int64) {
		binary.BigEndian.PutUint64(tmp[:8], uint64(v))
		b = append(b, tmp[:8]...)
	}
	putTs := func(ts Timespec) {
		putI64(ts.Sec)
		putI64(ts.Nsec)
	}
	putU32(st.Mode)
	putU32(st.Nlink)
	putU32(st.UID)
	putU32(st.GID)
	putI64(st.Size)
	putI64(st.Blocks)
	putTs(st.Atime)
	putTs(st.Mtime)
	putTs(st.Ctime)
	putI64(int64(st.Ino))
	return b
}

func decodeStat(b []byte) (Stat, error) {
	if len(b) != statWireSize {
		return Stat{}, fmt.Errorf("nsal: bad stat record length %d, want %d", len(b), statWireSize)
	}
	var st Stat
	off := 0
	getU32 := func() uint32 {
		v := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		return v
	}
	getI64 := func() int64 {
		v := int64(binary.BigEndian.Uint64(b[off : off+8]))
		off += 8
		return v
	}
	getTs := func() Timespec { return Timespec{Sec: getI64(), Nsec: getI64()} }
	st.Mode = getU32()
	st.Nlink = getU32()
	st.UID = getU32()
	st.GID = getU32()
	st.Size = getI64()
	st.Blocks = getI64()
	st.Atime = getTs()
	st.Mtime = getTs()
	st.Ctime = getTs()
	st.Ino = uint64(getI64())
	return st, nil
}

// File type bits (the S_IF* family), stored in Stat.Mode alongside
// permission bits the way POSIX packs them.
const (
	ModeDir     uint32 = 0o040000
	ModeRegular uint32 = 0o100000
	ModeSymlink uint32 = 0o120000
	ModeFmt     uint32 = 0o170000
)

func IsDir(mode uint32) bool     { return mode&ModeFmt == ModeDir }
func IsRegular(mode uint32) bool { return mode&ModeFmt == ModeRegular }
func IsSymlink(mode uint32) bool { return mode&ModeFmt == ModeSymlink }
