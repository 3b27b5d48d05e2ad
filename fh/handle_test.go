package fh

import (
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/cfs"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnlinkArmsDeleteOnCloseForOpenNode exercises the full production
// path (fh.Unlink, not a manual table.MarkNlinkZero call): unlinking a
// still-open file must arm its destroy-on-close so a later table.Close
// actually reaps it (spec §4.F "unlink", §4.I "delete-on-close").
func TestUnlinkArmsDeleteOnCloseForOpenNode(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, id, stat)

	st := table.AllocState()
	_, err = table.Open(ctx, st, h, OpenRead, NoCreate, nil)
	require.NoError(t, err)

	require.NoError(t, Unlink(ctx, fsys, table, rootCred, kvs.RootNodeID, "f"))

	_, err = fsys.Getattr(ctx, id)
	require.NoError(t, err, "node must still exist while an open state remains")

	require.NoError(t, table.Close(ctx, st))

	_, err = fsys.Getattr(ctx, id)
	assert.Error(t, err, "unlinking an open node must destroy it once its last open state closes")
}

// TestRenameOverwriteArmsDeleteOnCloseForOpenDestination mirrors the above
// for rename's overwrite path (spec §4.F "rename" step 7, §4.I
// "delete-on-close"), the "closing the last open on old-y destroys
// old-y's object" scenario (spec §8 scenario 2).
func TestRenameOverwriteArmsDeleteOnCloseForOpenDestination(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	_, _, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "x", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	oldID, oldStat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "y", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, oldID, oldStat)

	st := table.AllocState()
	_, err = table.Open(ctx, st, h, OpenRead|OpenWrite, NoCreate, nil)
	require.NoError(t, err)

	res, err := Rename(ctx, fsys, table, rootCred, kvs.RootNodeID, "x", kvs.RootNodeID, "y")
	require.NoError(t, err)
	require.True(t, res.Overwrote)
	require.Equal(t, oldID, res.OverwroteNode)

	_, err = fsys.Getattr(ctx, oldID)
	require.NoError(t, err, "old-y must survive the rename while its open state remains")

	require.NoError(t, table.Close(ctx, st))

	_, err = fsys.Getattr(ctx, oldID)
	assert.Error(t, err, "closing the last open on old-y must destroy its object")
}
