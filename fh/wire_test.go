package fh

import (
	"testing"
	"time"

	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStat() nsal.Stat {
	now := nsal.TimespecFromTime(time.Unix(1700000000, 0))
	return nsal.Stat{
		Mode:  nsal.ModeRegular | 0o644,
		Nlink: 1,
		UID:   1000,
		GID:   1000,
		Size:  4096,
		Ino:   42,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	h := FromIno(7, kvs.NodeID{Hi: 2, Lo: 99}, sampleStat())

	wire := h.Serialize()
	got, err := Deserialize(wire)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestKeyExcludesStat(t *testing.T) {
	node := kvs.NodeID{Hi: 2, Lo: 99}
	st1 := sampleStat()
	st2 := sampleStat()
	st2.Size = 999999

	h1 := FromIno(7, node, st1)
	h2 := FromIno(7, node, st2)

	assert.Equal(t, h1.Key(), h2.Key(), "differently-stale stats must still key to the same MD-cache entry")
}

func TestKeyDiffersAcrossFsID(t *testing.T) {
	node := kvs.NodeID{Hi: 2, Lo: 99}
	h1 := FromIno(1, node, sampleStat())
	h2 := FromIno(2, node, sampleStat())
	assert.NotEqual(t, h1.Key(), h2.Key())
}

func TestDeserializeRejectsShortBuffer(t *testing.T) {
	_, err := Deserialize([]byte{0, 1})
	assert.Error(t, err)
}

func TestGetRootUsesRootNodeID(t *testing.T) {
	h := GetRoot(3, sampleStat())
	assert.Equal(t, kvs.RootNodeID, h.Ino())
}
