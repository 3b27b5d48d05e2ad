package cfs

import (
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetattrMergesModeAndBumpsCtime(t *testing.T) {
	fs, sc := newTestFS(t)
	ctx := context.Background()

	id, st0, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)

	sc.AdvanceTime(1)
	mode := uint32(0o600)
	st1, err := fs.Setattr(ctx, rootCred, id, SetattrArgs{Mode: &mode})
	require.NoError(t, err)
	assert.EqualValues(t, 0o600, st1.Mode&0o777)
	assert.NotEqual(t, st0.Ctime, st1.Ctime)
}

func TestSetattrNonOwnerNonRootRejected(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)

	other := Cred{UID: 42, GID: 42}
	mode := uint32(0o600)
	_, err = fs.Setattr(ctx, other, id, SetattrArgs{Mode: &mode})
	assert.Equal(t, kerr.PermissionDenied, kerr.KindOf(err))
}

func TestSetattrSizeDelegatesToTruncate(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)

	oid, err := fs.DS.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, fs.DS.ObjCreate(ctx, oid))
	require.NoError(t, nsalSetInoOID(fs, ctx, id, oid))

	size := int64(42)
	st, err := fs.Setattr(ctx, rootCred, id, SetattrArgs{Size: &size})
	require.NoError(t, err)
	assert.EqualValues(t, 42, st.Size)
}

func TestTruncateShrinkThenReadPastEOF(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.CreateEntry(ctx, rootCred, kvs.RootNodeID, "f", EntryRegular, 0o644, "")
	require.NoError(t, err)
	oid, err := fs.DS.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, fs.DS.ObjCreate(ctx, oid))
	require.NoError(t, nsalSetInoOID(fs, ctx, id, oid))

	n, err := fs.Write(ctx, rootCred, id, 0, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	_, err = fs.Truncate(ctx, rootCred, id, 4)
	require.NoError(t, err)

	data, eof, err := fs.Read(ctx, rootCred, id, 0, 10)
	require.NoError(t, err)
	assert.True(t, eof)
	assert.Equal(t, "0123", string(data))

	data, eof, err = fs.Read(ctx, rootCred, id, 100, 10)
	require.NoError(t, err)
	assert.True(t, eof)
	assert.Empty(t, data)
}
