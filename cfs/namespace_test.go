package cfs

import (
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEntryRegularFile(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, st, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)
	assert.True(t, nsal.IsRegular(st.Mode))
	assert.EqualValues(t, 1, st.Nlink)
	assert.NotEqual(t, kvs.RootNodeID, id)

	gotID, gotSt, err := fs.Lookup(ctx, kvs.RootNodeID, "f")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, st.Mode, gotSt.Mode)

	rootSt, err := fs.Getattr(ctx, kvs.RootNodeID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rootSt.Nlink, "regular file creation does not bump parent nlink")
}

func TestCreateEntryDirBumpsParentNlink(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, st, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "d", EntryDir, 0o755, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Nlink)

	rootSt, err := fs.Getattr(ctx, kvs.RootNodeID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, rootSt.Nlink)
}

func TestCreateEntryCollisionIsExists(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)
	_, _, err = fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	assert.Equal(t, kerr.Exists, kerr.KindOf(err))
}

func TestCreateEntryRejectsBadNames(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "a/b"} {
		_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, name, EntryRegular, 0o644, "")
		assert.Error(t, err, "name %q should be rejected", name)
	}
}

func TestUnlinkDecrementsNlinkAndDestroysOrphan(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)

	_, err = fs.Unlink(ctx, rootCred, kvs.RootNodeID, "f", nil)
	require.NoError(t, err)

	_, _, err = fs.Lookup(ctx, kvs.RootNodeID, "f")
	assert.Equal(t, kerr.NotFound, kerr.KindOf(err))

	_, err = fs.Getattr(ctx, id)
	assert.Equal(t, kerr.NotFound, kerr.KindOf(err), "orphaned node should be destroyed")
}

func TestUnlinkKeepsOpenNodeAlive(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)

	result, err := fs.Unlink(ctx, rootCred, kvs.RootNodeID, "f", func(kvs.NodeID) bool { return true })
	require.NoError(t, err)
	assert.True(t, result.Deferred, "destroy-on-close should be deferred while the node is open")
	assert.Equal(t, id, result.Node)

	st, err := fs.Getattr(ctx, id)
	require.NoError(t, err, "node must survive while still open")
	assert.EqualValues(t, 0, st.Nlink)
}

func TestLinkAddsSecondName(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)

	err = fs.Link(ctx, rootCred, id, kvs.RootNodeID, "g")
	require.NoError(t, err)

	st, err := fs.Getattr(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Nlink)

	gotID, _, err := fs.Lookup(ctx, kvs.RootNodeID, "g")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
}

func TestLinkRejectsExistingDstName(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)
	_, _, err = fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "g", EntryRegular, 0o644, "")
	require.NoError(t, err)

	err = fs.Link(ctx, rootCred, id, kvs.RootNodeID, "g")
	assert.Equal(t, kerr.Exists, kerr.KindOf(err))
}

func TestRmdirEmptyAndNonEmpty(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "d", EntryDir, 0o755, "")
	require.NoError(t, err)

	dirID, _, err := fs.Lookup(ctx, kvs.RootNodeID, "d")
	require.NoError(t, err)
	_, _, err = fs.CreateEntry(ctx, rootCred, dirID, "child", EntryRegular, 0o644, "")
	require.NoError(t, err)

	err = fs.Rmdir(ctx, rootCred, kvs.RootNodeID, "d")
	assert.Equal(t, kerr.NotEmpty, kerr.KindOf(err))

	_, err = fs.Unlink(ctx, rootCred, dirID, "child", nil)
	require.NoError(t, err)
	require.NoError(t, fs.Rmdir(ctx, rootCred, kvs.RootNodeID, "d"))

	rootSt, err := fs.Getattr(ctx, kvs.RootNodeID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rootSt.Nlink)
}
