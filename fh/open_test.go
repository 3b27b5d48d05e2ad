package fh

import (
	"context"
	"testing"
	"time"

	"github.com/kvsfs/kvsfs/clock"
	"github.com/kvsfs/kvsfs/cfs"
	"github.com/kvsfs/kvsfs/dsal/memds"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/kvs/memkv"
	"github.com/kvsfs/kvsfs/nsal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rootCred = cfs.Cred{UID: 0, GID: 0}

func newTestFS(t *testing.T) *cfs.FS {
	t.Helper()
	ctx := context.Background()

	store := memkv.NewStore()
	root := nsal.Stat{Mode: nsal.ModeDir | 0o755, Nlink: 2, Ino: kvs.RootNodeID.Lo}
	tree, err := nsal.Create(ctx, store, kvs.IndexFID{Hi: 1, Lo: 1}, root)
	require.NoError(t, err)

	return &cfs.FS{
		Tree:  tree,
		DS:    memds.New(),
		Clock: clock.NewSimulatedClock(time.Unix(1000, 0)),
		FsID:  1,
	}
}

func TestAllocStateStartsClosed(t *testing.T) {
	table := NewTable(newTestFS(t))
	st := table.AllocState()
	assert.True(t, st.Closed())
}

func TestOpenNoCreateTransitionsToOpen(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, id, stat)

	st := table.AllocState()
	gotH, err := table.Open(ctx, st, h, OpenRead, NoCreate, nil)
	require.NoError(t, err)
	assert.Equal(t, h.Node, gotH.Node)
	assert.False(t, st.Closed())
	assert.True(t, table.IsOpen(id))
}

func TestOpenRejectsConflictingDenyWrite(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, id, stat)

	first := table.AllocState()
	_, err = table.Open(ctx, first, h, DenyWrite, NoCreate, nil)
	require.NoError(t, err)

	second := table.AllocState()
	_, err = table.Open(ctx, second, h, OpenWrite, NoCreate, nil)
	assert.Error(t, err)
	assert.True(t, second.Closed(), "a rejected open must leave the state CLOSED")
}

func TestCloseReleasesShareAndAllowsSubsequentDenyWrite(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, id, stat)

	st := table.AllocState()
	_, err = table.Open(ctx, st, h, OpenWrite, NoCreate, nil)
	require.NoError(t, err)

	require.NoError(t, table.Close(ctx, st))
	assert.True(t, st.Closed())
	assert.False(t, table.IsOpen(id))

	other := table.AllocState()
	_, err = table.Open(ctx, other, h, DenyWrite, NoCreate, nil)
	assert.NoError(t, err)
}

func TestOpenUncheckedCreatesEntry(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	st := table.AllocState()
	create := func(ctx context.Context) (FH, error) {
		id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "new", cfs.EntryRegular, 0o644, "")
		if err != nil {
			return FH{}, err
		}
		return FromIno(1, id, stat), nil
	}

	h, err := table.Open(ctx, st, FH{}, OpenRead|OpenWrite, Unchecked, create)
	require.NoError(t, err)
	assert.NotZero(t, h.Node)
	assert.False(t, st.Closed())
}

func TestCloseInvokesDestroyOnDeferredDelete(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, id, stat)

	st := table.AllocState()
	_, err = table.Open(ctx, st, h, OpenRead, NoCreate, nil)
	require.NoError(t, err)

	// Unlink while open: cfs defers destruction since the node is still
	// open, and fh.Unlink arms MarkNlinkZero so Close finishes the job.
	require.NoError(t, Unlink(ctx, fsys, table, rootCred, kvs.RootNodeID, "f"))

	_, err = fsys.Getattr(ctx, id)
	require.NoError(t, err, "node must still exist while an open state remains")

	require.NoError(t, table.Close(ctx, st))

	_, err = fsys.Getattr(ctx, id)
	assert.Error(t, err, "node must be destroyed once its last open state closes")
}

func TestReopenUpgradesFlagsWithoutIntermediateClose(t *testing.T) {
	ctx := context.Background()
	fsys := newTestFS(t)
	table := NewTable(fsys)

	id, stat, err := fsys.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", cfs.EntryRegular, 0o644, "")
	require.NoError(t, err)
	h := FromIno(1, id, stat)

	st := table.AllocState()
	_, err = table.Open(ctx, st, h, OpenRead, NoCreate, nil)
	require.NoError(t, err)

	require.NoError(t, table.Reopen(st, OpenRead|OpenWrite))
	assert.EqualValues(t, OpenRead|OpenWrite, st.flags)
}

func TestFindFDRejectsClosedState(t *testing.T) {
	table := NewTable(newTestFS(t))
	st := table.AllocState()
	_, err := FindFD(st)
	assert.Error(t, err)
}
