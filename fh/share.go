package fh

import (
	"fmt"

	"github.com/jacobsa/syncutil"
)

// OpenFlag is the NFSv4-style open-mode/deny bitmask (spec §4.I "Share
// reservations").
type OpenFlag uint32

const (
	OpenRead OpenFlag = 1 << iota
	OpenWrite
	DenyRead
	DenyWrite
)

// ShareState is the per-node share-reservation table: counts of open
// readers, open writers, deny-read holders, and deny-write holders (spec
// §4.I). One ShareState exists per live node with at least one open
// state; nodes with no opens need none.
//
// Mu is a jacobsa/syncutil.InvariantMutex, the same invariant-checked
// mutex the teacher's fs/inode package uses for its own per-inode state
// (fs/inode/dir.go's Mu), generalized here to the counters below instead
// of a GCS object's child listing.
type ShareState struct {
	Mu syncutil.InvariantMutex

	readers    uint32
	writers    uint32
	denyReads  uint32
	denyWrites uint32
}

func NewShareState() *ShareState {
	s := &ShareState{}
	s.Mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *ShareState) checkInvariants() {}

// conflicts reports whether new (a would-be open's flags) conflicts with
// the reservations old already holds — i.e. whether the counters
// *other than* the ones old itself contributed would forbid new.
func (s *ShareState) conflicts(old, new OpenFlag) bool {
	readers, writers, denyReads, denyWrites := s.readers, s.writers, s.denyReads, s.denyWrites
	if old&OpenRead != 0 {
		readers--
	}
	if old&OpenWrite != 0 {
		writers--
	}
	if old&DenyRead != 0 {
		denyReads--
	}
	if old&DenyWrite != 0 {
		denyWrites--
	}

	if new&OpenRead != 0 && denyReads > 0 {
		return true
	}
	if new&OpenWrite != 0 && denyWrites > 0 {
		return true
	}
	if new&DenyRead != 0 && readers > 0 {
		return true
	}
	if new&DenyWrite != 0 && writers > 0 {
		return true
	}
	return false
}

func (s *ShareState) applyDelta(flags OpenFlag, sign int) {
	delta := uint32(sign)
	if flags&OpenRead != 0 {
		s.readers += delta
	}
	if flags&OpenWrite != 0 {
		s.writers += delta
	}
	if flags&DenyRead != 0 {
		s.denyReads += delta
	}
	if flags&DenyWrite != 0 {
		s.denyWrites += delta
	}
}

// TryNewState checks that moving from old to new open flags doesn't
// conflict with the reservations other open states already hold, then
// commits the counter update under the write lock (spec §4.I
// "try_new_state... under a write lock"). Must be called with s.Mu held
// for writing by the caller (share updates happen under the FH write
// lock, spec §5).
func (s *ShareState) TryNewState(old, new OpenFlag) error {
	if s.conflicts(old, new) {
		return fmt.Errorf("fh: share reservation conflict: old=%b new=%b", old, new)
	}
	s.applyDelta(old, -1)
	s.applyDelta(new, 1)
	return nil
}

// SetNewState unconditionally commits a counter update, used when
// unwinding a partially-applied open (spec §4.I "set_new_state").
func (s *ShareState) SetNewState(old, new OpenFlag) {
	s.applyDelta(old, -1)
	s.applyDelta(new, 1)
}

func (s *ShareState) Empty() bool {
	return s.readers == 0 && s.writers == 0 && s.denyReads == 0 && s.denyWrites == 0
}
