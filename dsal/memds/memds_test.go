package memds

import (
	"bytes"
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/dsal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriteReadCycle(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Init(ctx))

	id, err := b.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, b.ObjCreate(ctx, id))

	h, err := b.ObjOpen(ctx, id)
	require.NoError(t, err)

	n, err := b.Pwrite(ctx, h, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = b.Pread(ctx, h, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	ctx := context.Background()
	b := New()
	id, err := b.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, b.ObjCreate(ctx, id))
	h, err := b.ObjOpen(ctx, id)
	require.NoError(t, err)
	require.NoError(t, b.Resize(ctx, h, 0, 10))

	buf := make([]byte, 4)
	n, err := b.Pread(ctx, h, buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestResizeShrinkAndGrow(t *testing.T) {
	ctx := context.Background()
	b := New()
	id, err := b.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, b.ObjCreate(ctx, id))
	h, err := b.ObjOpen(ctx, id)
	require.NoError(t, err)

	_, err = b.Pwrite(ctx, h, bytes.Repeat([]byte{1}, 16), 0)
	require.NoError(t, err)

	require.NoError(t, b.Resize(ctx, h, 16, 4))
	buf := make([]byte, 16)
	n, err := b.Pread(ctx, h, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, b.Resize(ctx, h, 4, 16))
	n, err = b.Pread(ctx, h, buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, make([]byte, 12), buf[:12])
}

func TestOpenDeletedObjectFails(t *testing.T) {
	ctx := context.Background()
	b := New()
	id, err := b.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, b.ObjCreate(ctx, id))
	require.NoError(t, b.ObjDelete(ctx, id))

	_, err = b.ObjOpen(ctx, id)
	assert.Error(t, err)
}

func TestIOOpStateMachine(t *testing.T) {
	ctx := context.Background()
	b := New()
	id, err := b.NewObjID(ctx)
	require.NoError(t, err)
	require.NoError(t, b.ObjCreate(ctx, id))
	h, err := b.ObjOpen(ctx, id)
	require.NoError(t, err)

	buf := []byte("abcd")
	var cbErr error
	cbCalled := false
	op, err := b.IOOpInit(h, dsal.OpWrite, dsal.Single(buf, 0), func(op *dsal.Op, err error) {
		cbCalled = true
		cbErr = err
	})
	require.NoError(t, err)
	assert.Equal(t, dsal.StateInit, op.State())

	require.NoError(t, b.IOOpSubmit(ctx, op))
	assert.True(t, cbCalled)
	assert.NoError(t, cbErr)
	assert.Equal(t, dsal.StateStable, op.State())

	require.NoError(t, b.IOOpWait(ctx, op))
	require.NoError(t, b.IOOpFini(op))
	assert.Equal(t, dsal.StateFini, op.State())
}
