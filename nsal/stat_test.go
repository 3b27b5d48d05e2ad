package nsal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmendIncrDecrLinkBounds(t *testing.T) {
	st := Stat{Nlink: maxNlink}
	err := st.Amend(AmendIncrLink, Stat{}, Timespec{})
	require.Error(t, err)

	st = Stat{Nlink: 0}
	err = st.Amend(AmendDecrLink, Stat{}, Timespec{})
	require.Error(t, err)

	st = Stat{Nlink: 2}
	require.NoError(t, st.Amend(AmendIncrLink, Stat{}, Timespec{}))
	assert.Equal(t, uint32(3), st.Nlink)
	require.NoError(t, st.Amend(AmendDecrLink, Stat{}, Timespec{}))
	assert.Equal(t, uint32(2), st.Nlink)
}

func TestAmendSizeUpdatesBlocks(t *testing.T) {
	st := Stat{}
	require.NoError(t, st.Amend(AmendSize, Stat{Size: DevBsize + 1}, Timespec{}))
	assert.Equal(t, int64(DevBsize+1), st.Size)
	assert.Equal(t, int64(2), st.Blocks)
}

func TestStatWireRoundTrip(t *testing.T) {
	st := Stat{
		Mode: ModeRegular | 0o644, Nlink: 1, UID: 42, GID: 7,
		Size: 1234, Blocks: 1, Ino: 99,
		Atime: Timespec{Sec: 1, Nsec: 2},
		Mtime: Timespec{Sec: 3, Nsec: 4},
		Ctime: Timespec{Sec: 5, Nsec: 6},
	}
	raw := encodeStat(st)
	got, err := decodeStat(raw)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestModeClassifiers(t *testing.T) {
	assert.True(t, IsDir(ModeDir|0o755))
	assert.True(t, IsRegular(ModeRegular|0o644))
	assert.True(t, IsSymlink(ModeSymlink|0o777))
	assert.False(t, IsDir(ModeRegular))
}
