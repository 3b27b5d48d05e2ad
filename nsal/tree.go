package nsal

import (
	"context"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
)

// Tree is a persistent tree of nodes living in one KV index (spec §4.D).
// Unlike the teacher's inode.DirInode, which caches a listing alongside a
// live GCS generation number, Tree is stateless: every call reads or
// writes straight through its KV, because the spec's KV-Tree contract
// itself carries no cache.
type Tree struct {
	store kvs.Store
	idx   kvs.Index
	root  kvs.NodeID
}

// Create allocates a tree: opens fid's index and initializes the root node
// with rootAttr (spec §4.D "create"). The root's dentry is implicit — it is
// reached by the well-known RootNodeID, not by a parent attach.
func Create(ctx context.Context, store kvs.Store, fid kvs.IndexFID, rootAttr Stat) (*Tree, error) {
	idx, err := store.IndexOpen(ctx, fid)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendTransient, err, "open index %s", fid)
	}
	t := &Tree{store: store, idx: idx, root: kvs.RootNodeID}
	if err := DumpStat(FromIndex(ctx, idx), kvs.RootNodeID, rootAttr); err != nil {
		return nil, err
	}
	return t, nil
}

// Init reopens an already-created tree's index (spec §4.D "init", used on
// process restart).
func Init(ctx context.Context, store kvs.Store, fid kvs.IndexFID) (*Tree, error) {
	idx, err := store.IndexOpen(ctx, fid)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendTransient, err, "reopen index %s", fid)
	}
	return &Tree{store: store, idx: idx, root: kvs.RootNodeID}, nil
}

func (t *Tree) Fini(ctx context.Context) error {
	return t.store.IndexClose(ctx, t.idx)
}

// Delete deletes the root node and releases the tree object (spec §4.D).
// Invariant 6 ("root node of an FS is never detached") is enforced by the
// namespace layer refusing fs_delete on a non-empty FS, not here.
func (t *Tree) Delete(ctx context.Context) error {
	if err := DeleteStat(FromIndex(ctx, t.idx), t.root); err != nil {
		return err
	}
	return t.store.IndexDestroy(ctx, t.Fid())
}

func (t *Tree) Fid() kvs.IndexFID  { return t.idx.FID() }
func (t *Tree) Root() kvs.NodeID   { return t.root }
func (t *Tree) Index() kvs.Index   { return t.idx }

// Attach writes a dentry (parent_id, name) -> child_id. It does not update
// either node's basic attrs; cfs composes that in the same transaction
// (spec §4.D).
func Attach(kv KV, parent, child kvs.NodeID, name string) error {
	key, err := kvs.ChildKey(parent, name)
	if err != nil {
		return kerr.Wrap(kerr.NameTooLong, err, "attach %s under %s", name, parent)
	}
	if err := kv.Set(key, encodeNodeID(child)); err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "attach %s under %s", name, parent)
	}
	return nil
}

// Detach removes the dentry. NotFound if absent (spec §4.D).
func Detach(kv KV, parent kvs.NodeID, name string) error {
	key, err := kvs.ChildKey(parent, name)
	if err != nil {
		return kerr.Wrap(kerr.NameTooLong, err, "detach %s from %s", name, parent)
	}
	if err := kv.Del(key); err != nil {
		return kerr.Wrap(kerr.NotFound, err, "detach %s from %s", name, parent)
	}
	return nil
}

// Lookup resolves (parent, name) -> child_id. NotFound if absent.
func Lookup(kv KV, parent kvs.NodeID, name string) (kvs.NodeID, error) {
	key, err := kvs.ChildKey(parent, name)
	if err != nil {
		return kvs.NodeID{}, kerr.Wrap(kerr.NameTooLong, err, "lookup %s under %s", name, parent)
	}
	raw, err := kv.Get(key)
	if err != nil {
		return kvs.NodeID{}, kerr.Wrap(kerr.NotFound, err, "lookup %s under %s", name, parent)
	}
	return decodeNodeID(raw)
}

// HasChildren reports whether parent has at least one dentry (spec §4.D).
func HasChildren(ctx context.Context, kv KV, parent kvs.NodeID) (bool, error) {
	it, err := kv.IterFind(kvs.ChildKeyPrefix(parent))
	if err != nil {
		return false, kerr.Wrap(kerr.BackendTransient, err, "has_children %s", parent)
	}
	defer it.Fini()

	ok, err := it.Next(ctx)
	if err != nil {
		return false, kerr.Wrap(kerr.BackendTransient, err, "has_children %s", parent)
	}
	if !ok {
		return false, nil
	}
	return hasPrefix(it.Key(), kvs.ChildKeyPrefix(parent)), nil
}

// ChildVisitor is invoked once per dentry during IterChildren; returning
// false stops iteration early (spec §4.D "cb returns continue or stop").
type ChildVisitor func(name string, child kvs.NodeID) (bool, error)

// IterChildren prefix-iterates (CHILD, parent) dentries, invoking visit per
// entry. Natural end of the underlying iterator is normalized to success,
// matching the spec's explicit note that internal NOENT from the iterator
// is not an error at this layer.
func IterChildren(ctx context.Context, kv KV, parent kvs.NodeID, visit ChildVisitor) error {
	prefix := kvs.ChildKeyPrefix(parent)
	it, err := kv.IterFind(prefix)
	if err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "iter_children %s", parent)
	}
	defer it.Fini()

	for {
		ok, err := it.Next(ctx)
		if err != nil {
			return kerr.Wrap(kerr.BackendTransient, err, "iter_children %s", parent)
		}
		if !ok || !hasPrefix(it.Key(), prefix) {
			return nil
		}
		name, err := kvs.ChildNameFromKey(it.Key(), parent)
		if err != nil {
			return kerr.Wrap(kerr.Invalid, err, "iter_children %s", parent)
		}
		child, err := decodeNodeID(it.Value())
		if err != nil {
			return err
		}
		cont, err := visit(name, child)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

func encodeNodeID(id kvs.NodeID) []byte {
	return kvs.EncodeNodeID(id)
}

func decodeNodeID(b []byte) (kvs.NodeID, error) {
	id, _, err := kvs.DecodeNodeID(b)
	if err != nil {
		return kvs.NodeID{}, kerr.Wrap(kerr.Invalid, err, "decode node id")
	}
	return id, nil
}
