// Package memkv is a dependency-free, in-memory KVS backend implementing
// the kvs.Store contract. It is the "one in-memory backend for tests"
// design note calls for, standing in for kvs/bboltkv in unit tests the way
// gcsfuse's gcsfake bucket stands in for a live GCS bucket.
package memkv

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kvsfs/kvsfs/kvs"
)

type Store struct {
	mu      sync.Mutex
	indices map[kvs.IndexFID]*index
}

func NewStore() *Store {
	return &Store{indices: make(map[kvs.IndexFID]*index)}
}

func (s *Store) IndexOpen(ctx context.Context, fid kvs.IndexFID) (kvs.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[fid]
	if !ok {
		idx = &index{fid: fid, data: make(map[string][]byte)}
		s.indices[fid] = idx
	}
	idx.refs++
	return idx, nil
}

func (s *Store) IndexClose(ctx context.Context, idx kvs.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mi, ok := idx.(*index)
	if !ok {
		return fmt.Errorf("memkv: foreign index type %T", idx)
	}
	mi.refs--
	return nil
}

func (s *Store) IndexDestroy(ctx context.Context, fid kvs.IndexFID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indices, fid)
	return nil
}

func (s *Store) Close() error { return nil }

type index struct {
	fid  kvs.IndexFID
	refs int

	mu   sync.RWMutex
	data map[string][]byte
}

func (i *index) FID() kvs.IndexFID { return i.fid }

func (i *index) Get(ctx context.Context, key []byte) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("memkv: key not found")
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (i *index) Set(ctx context.Context, key, val []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	cp := make([]byte, len(val))
	copy(cp, val)
	i.data[string(key)] = cp
	return nil
}

func (i *index) Del(ctx context.Context, key []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.data[string(key)]; !ok {
		return fmt.Errorf("memkv: key not found")
	}
	delete(i.data, string(key))
	return nil
}

func (i *index) sortedKeysWithPrefix(prefix []byte) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	keys := make([]string, 0, len(i.data))
	for k := range i.data {
		if bytes.HasPrefix([]byte(k), prefix) || k >= string(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	// Keep only keys >= prefix (IterFind positions at the least key >=
	// prefix; it is not a prefix filter by itself).
	out := keys[:0]
	for _, k := range keys {
		if k >= string(prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (i *index) IterFind(ctx context.Context, prefix []byte) (kvs.Iterator, error) {
	return &iterator{idx: i, keys: i.sortedKeysWithPrefix(prefix), pos: -1}, nil
}

func (i *index) BeginTxn(ctx context.Context) (kvs.Txn, error) {
	return newTxn(i), nil
}

type iterator struct {
	idx  *index
	keys []string
	pos  int
}

func (it *iterator) Next(ctx context.Context) (bool, error) {
	it.pos++
	return it.pos < len(it.keys), nil
}

func (it *iterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *iterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	it.idx.mu.RLock()
	defer it.idx.mu.RUnlock()
	return it.idx.data[it.keys[it.pos]]
}

func (it *iterator) Fini() error { return nil }

// txn stages writes/deletes in memory and applies them to the index on
// Commit. Concurrent transactions on the same index are serialized by
// holding the index write lock for the duration of the transaction, which is
// adequate for the single-writer-thread-per-request scheduling model in
// spec §5 and keeps the in-memory backend's semantics easy to reason about
// in tests.
type txn struct {
	idx     *index
	staged  map[string][]byte
	deleted map[string]bool
	done    bool
}

func newTxn(idx *index) *txn {
	idx.mu.Lock()
	return &txn{idx: idx, staged: make(map[string][]byte), deleted: make(map[string]bool)}
}

func (t *txn) Get(key []byte) ([]byte, error) {
	k := string(key)
	if t.deleted[k] {
		return nil, fmt.Errorf("memkv: key not found")
	}
	if v, ok := t.staged[k]; ok {
		return v, nil
	}
	if v, ok := t.idx.data[k]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("memkv: key not found")
}

func (t *txn) Set(key, val []byte) error {
	k := string(key)
	cp := make([]byte, len(val))
	copy(cp, val)
	t.staged[k] = cp
	delete(t.deleted, k)
	return nil
}

func (t *txn) Del(key []byte) error {
	k := string(key)
	if _, ok := t.staged[k]; !ok {
		if _, ok := t.idx.data[k]; !ok {
			return fmt.Errorf("memkv: key not found")
		}
	}
	delete(t.staged, k)
	t.deleted[k] = true
	return nil
}

func (t *txn) IterFind(prefix []byte) (kvs.Iterator, error) {
	merged := make(map[string][]byte, len(t.idx.data)+len(t.staged))
	for k, v := range t.idx.data {
		merged[k] = v
	}
	for k := range t.deleted {
		delete(merged, k)
	}
	for k, v := range t.staged {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		if k >= string(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &txnIterator{merged: merged, keys: keys, pos: -1}, nil
}

func (t *txn) Commit() error {
	if t.done {
		return fmt.Errorf("memkv: txn already finished")
	}
	defer t.idx.mu.Unlock()
	t.done = true
	for k := range t.deleted {
		delete(t.idx.data, k)
	}
	for k, v := range t.staged {
		t.idx.data[k] = v
	}
	return nil
}

func (t *txn) Discard() error {
	if t.done {
		return nil
	}
	t.done = true
	t.idx.mu.Unlock()
	return nil
}

type txnIterator struct {
	merged map[string][]byte
	keys   []string
	pos    int
}

func (it *txnIterator) Next(ctx context.Context) (bool, error) {
	it.pos++
	return it.pos < len(it.keys), nil
}

func (it *txnIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *txnIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.merged[it.keys[it.pos]]
}

func (it *txnIterator) Fini() error { return nil }

var _ kvs.Store = (*Store)(nil)
var _ kvs.Index = (*index)(nil)
var _ kvs.Txn = (*txn)(nil)
