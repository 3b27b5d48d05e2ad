// Package dsal is the data-store abstraction layer contract (spec §4.B):
// object create/open/delete/resize plus an async IO-op submit/wait model,
// with synchronous pread/pwrite/resize convenience methods the CFS
// data-path (package cfs) actually calls in this single-worker-thread
// scheduling model (spec §5 pairs every submit with a wait on the same
// goroutine, so the async machinery never actually overlaps with other work
// here — it exists because the spec names it as a first-class state
// machine, not because this implementation needs concurrency from it).
//
// Grounded on the teacher's gcs.Bucket/gcs.Conn split in gcs/gcs.go: one
// interface, a fake in-memory backend (dsal/memds) for tests, and a real
// backend (dsal/gcsds) wrapping cloud.google.com/go/storage.
package dsal

import (
	"context"
	"fmt"
	"sync"

	"github.com/kvsfs/kvsfs/kvs"
)

// OpType distinguishes a read IO op from a write IO op.
type OpType int

const (
	OpRead OpType = iota
	OpWrite
)

// OpState is the IO-op state machine position (spec §4.B).
type OpState int

const (
	StateInit OpState = iota
	StateSubmitted
	StateStable
	StateFailed
	StateFini
)

func (s OpState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSubmitted:
		return "SUBMITTED"
	case StateStable:
		return "STABLE"
	case StateFailed:
		return "FAILED"
	case StateFini:
		return "FINI"
	default:
		return "UNKNOWN"
	}
}

// IOVec is an immutable scatter/gather description of one or more ranges
// within an object. Single builds the one-range form.
type IOVec struct {
	Bufs    [][]byte
	Offsets []int64
}

// Single builds a one-range IOVec, the shape every call in this codebase
// actually uses — the CFS data-path never issues multi-range scatter I/O.
func Single(buf []byte, offset int64) IOVec {
	return IOVec{Bufs: [][]byte{buf}, Offsets: []int64{offset}}
}

// CompletionFunc is fired exactly once when an op reaches a terminal state,
// whether or not a caller is also blocked in Wait.
type CompletionFunc func(op *Op, err error)

// Handle is an opened object, returned by Backend.ObjOpen.
type Handle interface {
	ObjID() kvs.ObjID
}

// Backend is the DSAL backend contract (spec §4.B). obj_get_id is folded
// into NewObjID. memds mints ids from a monotonic counter; gcsds mints
// random 128-bit ids, which are unique but not monotonic.
type Backend interface {
	Init(ctx context.Context) error
	Fini(ctx context.Context) error

	NewObjID(ctx context.Context) (kvs.ObjID, error)
	ObjCreate(ctx context.Context, id kvs.ObjID) error
	ObjDelete(ctx context.Context, id kvs.ObjID) error
	// ObjOpen succeeds only for an existing object; a delete racing with
	// open surfaces as NOENT from a later op on the handle (spec §4.B).
	ObjOpen(ctx context.Context, id kvs.ObjID) (Handle, error)
	ObjClose(ctx context.Context, h Handle) error

	IOOpInit(h Handle, typ OpType, vec IOVec, cb CompletionFunc) (*Op, error)
	IOOpSubmit(ctx context.Context, op *Op) error
	IOOpWait(ctx context.Context, op *Op) error
	IOOpFini(op *Op) error

	// Pread/Pwrite/Resize are the synchronous convenience calls the CFS
	// data-path uses directly instead of driving the IO-op state machine
	// by hand for every block (spec §4.B, §4.H).
	Pread(ctx context.Context, h Handle, buf []byte, offset int64) (int, error)
	Pwrite(ctx context.Context, h Handle, buf []byte, offset int64) (int, error)
	Resize(ctx context.Context, h Handle, oldSize, newSize int64) error
}

// Op is one IO operation moving through the INIT -> SUBMITTED ->
// (STABLE|FAILED) -> FINI state machine. Backends embed *Op in their own
// op type or construct one directly; the state transitions here are
// backend-agnostic and safe to share.
type Op struct {
	mu    sync.Mutex
	state OpState
	typ   OpType
	vec   IOVec
	cb    CompletionFunc
	err   error
	done  chan struct{}
}

func NewOp(typ OpType, vec IOVec, cb CompletionFunc) *Op {
	return &Op{state: StateInit, typ: typ, vec: vec, cb: cb, done: make(chan struct{})}
}

func (op *Op) Type() OpType { return op.typ }
func (op *Op) Vec() IOVec   { return op.vec }

func (op *Op) State() OpState {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// Submit transitions INIT -> SUBMITTED. Double-submit is a caller bug, per
// spec §4.B ("double-submit... undefined and must be prevented by the
// caller"); this implementation rejects it with an error instead of
// invoking undefined behavior.
func (op *Op) Submit() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != StateInit {
		return fmt.Errorf("dsal: op submitted from state %s, want INIT", op.state)
	}
	op.state = StateSubmitted
	return nil
}

// Complete transitions SUBMITTED -> STABLE or FAILED, firing the
// completion callback exactly once and unblocking any Wait.
func (op *Op) Complete(err error) {
	op.mu.Lock()
	if op.state != StateSubmitted {
		op.mu.Unlock()
		return
	}
	if err != nil {
		op.state = StateFailed
	} else {
		op.state = StateStable
	}
	op.err = err
	cb := op.cb
	op.mu.Unlock()

	close(op.done)
	if cb != nil {
		cb(op, err)
	}
}

// Wait blocks until the op reaches STABLE or FAILED.
func (op *Op) Wait(ctx context.Context) error {
	select {
	case <-op.done:
		op.mu.Lock()
		defer op.mu.Unlock()
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fini transitions to FINI. Submit-after-fini is a caller bug (spec §4.B);
// callers in this tree never reuse an Op after Fini.
func (op *Op) Fini() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.state = StateFini
	return nil
}
