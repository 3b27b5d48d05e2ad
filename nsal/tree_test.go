package nsal

import (
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/kvs/memkv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	ctx := context.Background()
	store := memkv.NewStore()
	tree, err := Create(ctx, store, kvs.IndexFID{Hi: 1, Lo: 0}, Stat{
		Mode: ModeDir | 0o755, Nlink: 2, Ino: kvs.RootNodeID.Ino(),
	})
	require.NoError(t, err)
	return tree
}

func TestAttachLookupDetach(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	kv := FromIndex(ctx, tree.Index())
	root := tree.Root()
	child := kvs.NodeID{Hi: 2, Lo: 1}

	_, err := Lookup(kv, root, "a")
	assert.Error(t, err)

	require.NoError(t, Attach(kv, root, child, "a"))
	got, err := Lookup(kv, root, "a")
	require.NoError(t, err)
	assert.Equal(t, child, got)

	require.NoError(t, Detach(kv, root, "a"))
	_, err = Lookup(kv, root, "a")
	assert.Error(t, err)
}

func TestHasChildrenAndIterChildren(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	kv := FromIndex(ctx, tree.Index())
	root := tree.Root()

	has, err := HasChildren(ctx, kv, root)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, Attach(kv, root, kvs.NodeID{Hi: 2, Lo: 1}, "b"))
	require.NoError(t, Attach(kv, root, kvs.NodeID{Hi: 2, Lo: 2}, "a"))
	require.NoError(t, Attach(kv, root, kvs.NodeID{Hi: 2, Lo: 3}, "c"))

	has, err = HasChildren(ctx, kv, root)
	require.NoError(t, err)
	assert.True(t, has)

	var names []string
	err = IterChildren(ctx, kv, root, func(name string, child kvs.NodeID) (bool, error) {
		names = append(names, name)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	names = nil
	err = IterChildren(ctx, kv, root, func(name string, child kvs.NodeID) (bool, error) {
		names = append(names, name)
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}
