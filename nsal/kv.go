package nsal

import (
	"context"

	"github.com/kvsfs/kvsfs/kvs"
)

// KV is the ctx-free subset of kvs.Index that kvs.Txn already implements
// verbatim. Every nsal and cfs operation is written against KV so the same
// code runs whether the caller passed a bare index (simple reads) or an
// open transaction (composed writes) — cfs is the layer that decides which
// one to hand down, per spec §4.D ("higher layers compose [tree ops] in
// transactions").
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, val []byte) error
	Del(key []byte) error
	IterFind(prefix []byte) (kvs.Iterator, error)
}

// FromIndex adapts a kvs.Index, binding ctx for the lifetime of the
// returned KV, so read-only callers that never need a transaction (getattr,
// readlink) don't have to open one just to satisfy the KV interface.
func FromIndex(ctx context.Context, idx kvs.Index) KV {
	return indexKV{ctx: ctx, idx: idx}
}

type indexKV struct {
	ctx context.Context
	idx kvs.Index
}

func (k indexKV) Get(key []byte) ([]byte, error) { return k.idx.Get(k.ctx, key) }
func (k indexKV) Set(key, val []byte) error       { return k.idx.Set(k.ctx, key, val) }
func (k indexKV) Del(key []byte) error            { return k.idx.Del(k.ctx, key) }
func (k indexKV) IterFind(prefix []byte) (kvs.Iterator, error) {
	return k.idx.IterFind(k.ctx, prefix)
}
