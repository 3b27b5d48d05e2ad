package fh

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kvsfs/kvsfs/cfs"
	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
)

// CreateMode mirrors NFSv4 open2's createmode4: whether open() should
// create the target, and what to do if it already exists (spec §4.I
// "open2 modes").
type CreateMode int

const (
	NoCreate   CreateMode = iota // open only; ENOENT if absent
	Unchecked                    // create via the caller's create func (see Table.Open)
	Exclusive                    // create; EXIST if already present
)

// stateStatus is an open state's own lifecycle, independent of the share
// counters it contributes to (spec §4.I "CLOSED/OPEN").
type stateStatus int

const (
	statusClosed stateStatus = iota
	statusOpen
)

// State is one allocated open (an NFSv4 open_owner4/stateid's worth of
// bookkeeping): the flags it holds, the node it's open against, and its
// own CLOSED/OPEN status. A delegation is represented as an ordinary
// State: a read delegation holds an internal OpenRead, a write
// delegation an internal OpenRead|OpenWrite, same as the teacher's
// lease package representing a read lease and a file lease as distinct
// types sharing one revoke/release path (spec §4.I "delegations").
type State struct {
	id     uint64
	node   kvs.NodeID
	status stateStatus
	flags  OpenFlag
}

func (s *State) Closed() bool { return s.status == statusClosed }

// Table is the FH layer's open-state and share-reservation registry: one
// ShareState per node with at least one live open, a CLOSED-or-OPEN
// State per allocated handle, and the delete-on-close wiring into
// cfs.FS.DestroyOrphaned (spec §4.I).
//
// Grounded on the teacher's lease.RefreshLeaser/FileLease bookkeeping
// (alloc/refresh/revoke around a shared resource) generalized from GCS
// object leases to per-node share reservations, and on fs/inode/dir.go's
// pattern of guarding small mutable counters with one mutex per live
// object rather than a single global lock.
type Table struct {
	fsys *cfs.FS

	mu     sync.Mutex
	shares map[kvs.NodeID]*ShareState
	nlink0 map[kvs.NodeID]bool // nodes known to have nlink==0, pending destroy-on-close

	nextID atomic.Uint64
}

func NewTable(fsys *cfs.FS) *Table {
	return &Table{
		fsys:   fsys,
		shares: make(map[kvs.NodeID]*ShareState),
		nlink0: make(map[kvs.NodeID]bool),
	}
}

func (t *Table) shareFor(id kvs.NodeID) *ShareState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.shares[id]
	if !ok {
		s = NewShareState()
		t.shares[id] = s
	}
	return s
}

func (t *Table) releaseShareIfEmpty(id kvs.NodeID, s *ShareState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Empty() {
		delete(t.shares, id)
	}
}

// AllocState allocates a new open state with openflags=CLOSED and no
// node association yet (spec §4.I "alloc_state"). The caller transitions
// it to OPEN via Open.
func (t *Table) AllocState() *State {
	return &State{id: t.nextID.Add(1), status: statusClosed}
}

// Open transitions st from CLOSED to OPEN(flags) against h's node: it
// first calls into cfs to perform (Unchecked/Exclusive) or verify
// (NoCreate) the node per mode, then checks the requested flags against
// the node's existing share reservations (spec §4.I "open2").
//
// For Unchecked/Exclusive, create is called to actually create the
// entry and Open returns any error create returns: the two modes are
// handled alike, and Open does not itself fall back to opening an entry
// that already exists. NoCreate requires h to name an existing node.
func (t *Table) Open(ctx context.Context, st *State, h FH, flags OpenFlag, mode CreateMode, create func(ctx context.Context) (FH, error)) (FH, error) {
	if st.status != statusClosed {
		return FH{}, kerr.New(kerr.Invalid, "fh: open called on a non-closed state")
	}

	switch mode {
	case Unchecked:
		newH, err := create(ctx)
		if err != nil {
			return FH{}, err
		}
		h = newH
	case Exclusive:
		newH, err := create(ctx)
		if err != nil {
			return FH{}, err
		}
		h = newH
	case NoCreate:
		// h must already resolve to a live node.
		if _, err := t.fsys.Getattr(ctx, h.Node); err != nil {
			return FH{}, err
		}
	}

	share := t.shareFor(h.Node)
	share.Mu.Lock()
	err := share.TryNewState(0, flags)
	share.Mu.Unlock()
	if err != nil {
		t.releaseShareIfEmpty(h.Node, share)
		return FH{}, err
	}

	st.node = h.Node
	st.flags = flags
	st.status = statusOpen
	return h, nil
}

// Reopen transitions an already-OPEN state from its current flags to
// newFlags without an intervening CLOSED — e.g. upgrading a read-only
// open to read-write (spec §4.I "OPEN(f1) -> OPEN(f2)").
func (t *Table) Reopen(st *State, newFlags OpenFlag) error {
	if st.status != statusOpen {
		return kerr.New(kerr.Invalid, "fh: reopen called on a non-open state")
	}
	share := t.shareFor(st.node)
	share.Mu.Lock()
	defer share.Mu.Unlock()
	if err := share.TryNewState(st.flags, newFlags); err != nil {
		return err
	}
	st.flags = newFlags
	return nil
}

// Close transitions st from OPEN to CLOSED, releases its share
// reservation, and — if the node has since dropped to nlink==0 and no
// other open state remains — invokes delete-on-close (spec §4.I "OPEN ->
// CLOSED", "delete-on-close").
func (t *Table) Close(ctx context.Context, st *State) error {
	if st.status != statusOpen {
		return nil
	}

	share := t.shareFor(st.node)
	share.Mu.Lock()
	share.SetNewState(st.flags, 0)
	empty := share.Empty()
	share.Mu.Unlock()

	node := st.node
	st.status = statusClosed
	st.flags = 0

	if empty {
		t.releaseShareIfEmpty(node, share)
		t.mu.Lock()
		pending := t.nlink0[node]
		if pending {
			delete(t.nlink0, node)
		}
		t.mu.Unlock()
		if pending {
			return Destroy(ctx, t.fsys, node)
		}
	}
	return nil
}

// MarkNlinkZero records that node has reached nlink==0 while it may
// still be open (spec §4.I "delete-on-close": the node survives until
// its last open state closes). Callers in the unlink/rename path call
// this instead of destroying the node outright whenever an is-open check
// reports an open state.
func (t *Table) MarkNlinkZero(node kvs.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nlink0[node] = true
}

// IsOpen reports whether node currently has any live share reservation —
// the is_open predicate the CFS layer's unlink/rename/destroy_orphaned
// operations need before deciding to destroy a node immediately versus
// deferring to delete-on-close (spec §4.F, §4.I).
func (t *Table) IsOpen(node kvs.NodeID) bool {
	t.mu.Lock()
	s, ok := t.shares[node]
	t.mu.Unlock()
	if !ok {
		return false
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return !s.Empty()
}

// FindFD resolves a lock-state request to its owning open state,
// rejecting any other state type as unreachable (spec §4.I "find_fd":
// "redirect lock-state to owning open state; reject other state types").
// Locking is out of scope for this tree (spec Non-goals), but byte-range
// lock stateids still need to resolve back to the open they were granted
// under, so this stays a named seam rather than silently vanishing.
func FindFD(owner *State) (*State, error) {
	if owner == nil || owner.Closed() {
		return nil, kerr.New(kerr.Invalid, "fh: find_fd: owning state is not open")
	}
	return owner, nil
}
