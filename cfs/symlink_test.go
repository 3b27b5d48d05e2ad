package cfs

import (
	"context"
	"strings"
	"testing"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymlinkAndReadlink(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, st, err := fs.Symlink(ctx, rootCred, kvs.RootNodeID, "link", "/a/b/c")
	require.NoError(t, err)
	assert.True(t, nsal.IsSymlink(st.Mode))

	target, err := fs.Readlink(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", target)
}

func TestReadlinkOnNonSymlinkIsInvalid(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Readlink(ctx, kvs.RootNodeID, 0)
	assert.Equal(t, kerr.Invalid, kerr.KindOf(err))
}

func TestReadlinkBufferTooSmall(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	id, _, err := fs.Symlink(ctx, rootCred, kvs.RootNodeID, "link", "/a/b/c")
	require.NoError(t, err)

	_, err = fs.Readlink(ctx, id, 3)
	assert.Equal(t, kerr.BufferTooSmall, kerr.KindOf(err))
}

func TestSymlinkTargetTooLong(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, _, err := fs.Symlink(ctx, rootCred, kvs.RootNodeID, "link", strings.Repeat("a", pathMax+1))
	assert.Equal(t, kerr.NameTooLong, kerr.KindOf(err))
}
