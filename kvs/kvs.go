package kvs

import "context"

// IndexFID names a distinct ordered key-space (spec §3.1 "kvs index fid").
type IndexFID struct {
	Hi, Lo uint64
}

func (f IndexFID) String() string {
	n := NodeID(f)
	return n.String()
}

// Store is the top-level KVS driver: it opens and closes indices by fid. One
// Store is created per process and shared by every namespace (spec §4.E).
type Store interface {
	// IndexOpen opens (creating if necessary) the index named by fid.
	IndexOpen(ctx context.Context, fid IndexFID) (Index, error)

	// IndexClose releases idx. idx must not be used after this returns.
	IndexClose(ctx context.Context, idx Index) error

	// IndexDestroy permanently removes the index and its contents.
	IndexDestroy(ctx context.Context, fid IndexFID) error

	Close() error
}

// Index is a single ordered key-space opened from a Store. Keys compare
// lexicographically as byte strings; IterFind positions on the least key >=
// prefix and Next advances by exact-next order (spec §4.A contracts).
type Index interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, val []byte) error
	Del(ctx context.Context, key []byte) error

	// IterFind returns an iterator positioned at the least key >= prefix. The
	// caller is responsible for stopping once keys no longer share prefix;
	// iteration order is exact-next, not prefix-filtered by the backend.
	IterFind(ctx context.Context, prefix []byte) (Iterator, error)

	// BeginTxn starts a transaction grouping a sequence of writes; no write
	// is observable to other readers of the index until Commit. The backend
	// may be no-op transactional (best-effort) but callers always pair
	// BeginTxn with Commit or Discard so a future strongly-transactional
	// backend is a drop-in replacement.
	BeginTxn(ctx context.Context) (Txn, error)

	FID() IndexFID
}

// Txn is a single-index transaction. Get/Set/Del/IterFind inside a Txn see
// its own uncommitted writes; nothing is visible outside until Commit.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Set(key, val []byte) error
	Del(key []byte) error
	IterFind(prefix []byte) (Iterator, error)

	Commit() error
	Discard() error
}

// Iterator walks keys in byte-lexicographic order starting from the position
// IterFind established. Key/Value are valid until the next Next or Fini
// call, matching the spec's reference-until-advance contract.
type Iterator interface {
	// Next advances to the next key, reporting whether one was found. A
	// false return with a nil error means natural end of the index/prefix
	// range (the §4.D "NOENT normalized to success" rule is enforced by
	// nsal, which is the only caller that knows what "success" means here).
	Next(ctx context.Context) (bool, error)
	Key() []byte
	Value() []byte
	Fini() error
}

// AllocBuffer and FreeBuffer stand in for the spec's backend-aligned buffer
// allocation hook. Go's allocator has no concept of DMA alignment the way
// the original C backends did, so these are a thin, deliberately trivial
// pass-through kept only so callers have a single place to route through if
// a future backend needs pinned/aligned memory.
func AllocBuffer(n int) []byte { return make([]byte, n) }
func FreeBuffer([]byte)        {}
