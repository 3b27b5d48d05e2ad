package cfs

import (
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenameSameDir(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "a", EntryRegular, 0o644, "")
	require.NoError(t, err)

	res, err := fs.Rename(ctx, rootCred, kvs.RootNodeID, "a", kvs.RootNodeID, "b", nil)
	require.NoError(t, err)
	assert.False(t, res.Overwrote)

	_, _, err = fs.Lookup(ctx, kvs.RootNodeID, "a")
	assert.Equal(t, kerr.NotFound, kerr.KindOf(err))

	gotID, _, err := fs.Lookup(ctx, kvs.RootNodeID, "b")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
}

func TestRenameCrossDirAdjustsDirLinkCounts(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	srcDirID, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "src", EntryDir, 0o755, "")
	require.NoError(t, err)
	dstDirID, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "dst", EntryDir, 0o755, "")
	require.NoError(t, err)

	childID, _, err := fs.CreateEntry(ctx, rootCred, srcDirID, "child", EntryDir, 0o755, "")
	require.NoError(t, err)

	srcStatBefore, err := fs.Getattr(ctx, srcDirID)
	require.NoError(t, err)
	dstStatBefore, err := fs.Getattr(ctx, dstDirID)
	require.NoError(t, err)

	_, err = fs.Rename(ctx, rootCred, srcDirID, "child", dstDirID, "child", nil)
	require.NoError(t, err)

	srcStatAfter, err := fs.Getattr(ctx, srcDirID)
	require.NoError(t, err)
	dstStatAfter, err := fs.Getattr(ctx, dstDirID)
	require.NoError(t, err)

	assert.Equal(t, srcStatBefore.Nlink-1, srcStatAfter.Nlink)
	assert.Equal(t, dstStatBefore.Nlink+1, dstStatAfter.Nlink)

	gotID, _, err := fs.Lookup(ctx, dstDirID, "child")
	require.NoError(t, err)
	assert.Equal(t, childID, gotID)
}

func TestRenameOverwriteRegularFileDestroysOld(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "a", EntryRegular, 0o644, "")
	require.NoError(t, err)
	oldID, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "b", EntryRegular, 0o644, "")
	require.NoError(t, err)

	res, err := fs.Rename(ctx, rootCred, kvs.RootNodeID, "a", kvs.RootNodeID, "b", nil)
	require.NoError(t, err)
	assert.True(t, res.Overwrote)
	assert.Equal(t, oldID, res.OverwroteNode)

	_, err = fs.Getattr(ctx, oldID)
	assert.Equal(t, kerr.NotFound, kerr.KindOf(err))
}

func TestRenameOverwriteOpenDestinationIsDeferred(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "a", EntryRegular, 0o644, "")
	require.NoError(t, err)
	oldID, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "b", EntryRegular, 0o644, "")
	require.NoError(t, err)

	_, err = fs.Rename(ctx, rootCred, kvs.RootNodeID, "a", kvs.RootNodeID, "b", func(kvs.NodeID) bool { return true })
	require.NoError(t, err)

	st, err := fs.Getattr(ctx, oldID)
	require.NoError(t, err, "open destination must survive the rename")
	assert.EqualValues(t, 0, st.Nlink)
}

func TestRenameCrossKindRejected(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "a", EntryRegular, 0o644, "")
	require.NoError(t, err)
	_, _, err = fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "d", EntryDir, 0o755, "")
	require.NoError(t, err)

	_, err = fs.Rename(ctx, rootCred, kvs.RootNodeID, "a", kvs.RootNodeID, "d", nil)
	assert.Equal(t, kerr.NotDir, kerr.KindOf(err))
}

func TestRenameOverwriteNonEmptyDirRejected(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "src", EntryDir, 0o755, "")
	require.NoError(t, err)
	dstID, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "dst", EntryDir, 0o755, "")
	require.NoError(t, err)
	_, _, err = fs.CreateEntry(ctx, rootCred, dstID, "child", EntryRegular, 0o644, "")
	require.NoError(t, err)

	_, err = fs.Rename(ctx, rootCred, kvs.RootNodeID, "src", kvs.RootNodeID, "dst", nil)
	assert.Equal(t, kerr.Exists, kerr.KindOf(err))
}
