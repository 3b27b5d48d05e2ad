// Package bboltkv implements the kvs.Store contract on top of
// go.etcd.io/bbolt, an embedded ordered key/value store. This is the
// "real" KVS backend: the teacher never ships a literal ordered-KV driver
// of its own (a live GCS bucket played that role, listed and read through
// gcs.Bucket), so this backend is grounded on the sibling rclone-rclone
// module's use of bbolt (rclone's cache backend stores its index in a bolt
// database) rather than on gcsfuse directly.
//
// Each kvs.IndexFID maps to one top-level bolt bucket, created on first
// IndexOpen. Every bolt key already carries package kvs's 2-byte
// (type,version) prefix (see kvs.ChildKey et al.), so no extra namespacing
// is needed inside the bucket.
package bboltkv

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/kvsfs/kvsfs/kvs"
)

type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bolt database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("bboltkv: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func bucketName(fid kvs.IndexFID) []byte {
	return []byte(fid.String())
}

func (s *Store) IndexOpen(ctx context.Context, fid kvs.IndexFID) (kvs.Index, error) {
	name := bucketName(fid)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bboltkv: create bucket %s: %w", fid, err)
	}
	return &index{db: s.db, fid: fid, name: name}, nil
}

func (s *Store) IndexClose(ctx context.Context, idx kvs.Index) error {
	if _, ok := idx.(*index); !ok {
		return fmt.Errorf("bboltkv: foreign index type %T", idx)
	}
	return nil
}

func (s *Store) IndexDestroy(ctx context.Context, fid kvs.IndexFID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket(bucketName(fid))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) Close() error { return s.db.Close() }

type index struct {
	db   *bbolt.DB
	fid  kvs.IndexFID
	name []byte
}

func (i *index) FID() kvs.IndexFID { return i.fid }

func (i *index) Get(ctx context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := i.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(i.name).Get(key)
		if v == nil {
			return fmt.Errorf("bboltkv: key not found")
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (i *index) Set(ctx context.Context, key, val []byte) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(i.name).Put(key, val)
	})
}

func (i *index) Del(ctx context.Context, key []byte) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(i.name)
		if b.Get(key) == nil {
			return fmt.Errorf("bboltkv: key not found")
		}
		return b.Delete(key)
	})
}

// IterFind opens its own read-only bolt transaction, held open until Fini is
// called. Callers must always Fini an iterator or the underlying bolt
// transaction leaks and blocks future writers.
func (i *index) IterFind(ctx context.Context, prefix []byte) (kvs.Iterator, error) {
	tx, err := i.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("bboltkv: begin read txn: %w", err)
	}
	c := tx.Bucket(i.name).Cursor()
	k, v := c.Seek(prefix)
	return &iterator{tx: tx, c: c, k: k, v: v, started: false}, nil
}

func (i *index) BeginTxn(ctx context.Context) (kvs.Txn, error) {
	tx, err := i.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("bboltkv: begin write txn: %w", err)
	}
	return &txn{tx: tx, bucket: tx.Bucket(i.name)}, nil
}

type iterator struct {
	tx      *bbolt.Tx
	c       *bbolt.Cursor
	k, v    []byte
	started bool
}

func (it *iterator) Next(ctx context.Context) (bool, error) {
	if !it.started {
		it.started = true
	} else {
		it.k, it.v = it.c.Next()
	}
	return it.k != nil, nil
}

func (it *iterator) Key() []byte   { return it.k }
func (it *iterator) Value() []byte { return it.v }
func (it *iterator) Fini() error   { return it.tx.Rollback() }

type txn struct {
	tx     *bbolt.Tx
	bucket *bbolt.Bucket
}

func (t *txn) Get(key []byte) ([]byte, error) {
	v := t.bucket.Get(key)
	if v == nil {
		return nil, fmt.Errorf("bboltkv: key not found")
	}
	return append([]byte(nil), v...), nil
}

func (t *txn) Set(key, val []byte) error { return t.bucket.Put(key, val) }

func (t *txn) Del(key []byte) error {
	if t.bucket.Get(key) == nil {
		return fmt.Errorf("bboltkv: key not found")
	}
	return t.bucket.Delete(key)
}

func (t *txn) IterFind(prefix []byte) (kvs.Iterator, error) {
	c := t.bucket.Cursor()
	k, v := c.Seek(prefix)
	return &txnIterator{c: c, k: k, v: v, started: false}, nil
}

func (t *txn) Commit() error  { return t.tx.Commit() }
func (t *txn) Discard() error { return t.tx.Rollback() }

type txnIterator struct {
	c       *bbolt.Cursor
	k, v    []byte
	started bool
}

func (it *txnIterator) Next(ctx context.Context) (bool, error) {
	if !it.started {
		it.started = true
	} else {
		it.k, it.v = it.c.Next()
	}
	return it.k != nil, nil
}

func (it *txnIterator) Key() []byte   { return it.k }
func (it *txnIterator) Value() []byte { return it.v }
func (it *txnIterator) Fini() error   { return nil }

var _ kvs.Store = (*Store)(nil)
var _ kvs.Index = (*index)(nil)
var _ kvs.Txn = (*txn)(nil)
