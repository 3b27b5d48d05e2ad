package kerr

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesKindAndChain(t *testing.T) {
	root := fmt.Errorf("disk full")
	err := Wrap(NoSpace, root, "writing block")

	require.Error(t, err)
	assert.Equal(t, NoSpace, KindOf(err))
	assert.True(t, Is(err, NoSpace))
	assert.False(t, Is(err, NotFound))
	assert.ErrorIs(t, err, root)
}

func TestKindOfUnclassifiedErrorIsFatal(t *testing.T) {
	assert.Equal(t, BackendFatal, KindOf(fmt.Errorf("surprise")))
}

func TestErrnoMapping(t *testing.T) {
	cases := map[Kind]syscall.Errno{
		NotFound:         syscall.ENOENT,
		Exists:           syscall.EEXIST,
		NotDir:           syscall.ENOTDIR,
		NotEmpty:         syscall.ENOTEMPTY,
		PermissionDenied: syscall.EPERM,
		NoSpace:          syscall.ENOSPC,
		BufferTooSmall:   syscall.ERANGE,
		CrossDevice:      syscall.EXDEV,
		NameTooLong:      syscall.E2BIG,
		Invalid:          syscall.EINVAL,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.Errno(), "kind %v", k)
	}
}

func TestErrnoNilIsZero(t *testing.T) {
	assert.Equal(t, syscall.Errno(0), Errno(nil))
}
