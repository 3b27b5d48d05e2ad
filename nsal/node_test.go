package nsal

import (
	"context"
	"testing"

	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/kvs/memkv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) kvs.Index {
	t.Helper()
	ctx := context.Background()
	s := memkv.NewStore()
	idx, err := s.IndexOpen(ctx, kvs.IndexFID{Hi: 1, Lo: 1})
	require.NoError(t, err)
	return idx
}

func TestDumpLoadDeleteStat(t *testing.T) {
	ctx := context.Background()
	idx := testIndex(t)
	kv := FromIndex(ctx, idx)
	id := kvs.NodeID{Hi: 2, Lo: 5}

	_, err := LoadStat(kv, id)
	assert.Error(t, err)

	st := Stat{Mode: ModeRegular | 0o644, Nlink: 1, Ino: 5}
	require.NoError(t, DumpStat(kv, id, st))

	got, err := LoadStat(kv, id)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	require.NoError(t, DeleteStat(kv, id))
	_, err = LoadStat(kv, id)
	assert.Error(t, err)
}

func TestSysAttrLifecycle(t *testing.T) {
	ctx := context.Background()
	idx := testIndex(t)
	kv := FromIndex(ctx, idx)
	id := kvs.NodeID{Hi: 2, Lo: 6}

	err := SetSysAttr(kv, id, kvs.SysAttrSymlink, nil)
	assert.Error(t, err)

	require.NoError(t, SetSysAttr(kv, id, kvs.SysAttrSymlink, []byte("/target")))
	got, err := GetSysAttr(kv, id, kvs.SysAttrSymlink)
	require.NoError(t, err)
	assert.Equal(t, "/target", string(got))

	require.NoError(t, DelSysAttr(kv, id, kvs.SysAttrSymlink))
	_, err = GetSysAttr(kv, id, kvs.SysAttrSymlink)
	assert.Error(t, err)
}

func TestInoOIDMap(t *testing.T) {
	ctx := context.Background()
	idx := testIndex(t)
	kv := FromIndex(ctx, idx)
	id := kvs.NodeID{Hi: 2, Lo: 7}
	oid := kvs.ObjID{Hi: 9, Lo: 10}

	require.NoError(t, SetInoOID(kv, id, oid))
	got, err := InoToOID(kv, id)
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	require.NoError(t, DelOID(kv, id))
	_, err = InoToOID(kv, id)
	assert.Error(t, err)
}

func TestNextInoMonotonic(t *testing.T) {
	ctx := context.Background()
	idx := testIndex(t)
	kv := FromIndex(ctx, idx)
	root := kvs.RootNodeID

	first, err := NextIno(kv, root)
	require.NoError(t, err)
	second, err := NextIno(kv, root)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}
