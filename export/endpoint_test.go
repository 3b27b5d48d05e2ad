package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEndpoint() Endpoint {
	return Endpoint{
		Clients:      []string{"*"},
		Squash:       SquashRootSquash,
		AccessType:   AccessRW,
		Protocols:    []Protocol{Protocol4},
		SecType:      SecSys,
		FilesystemID: "192.168",
	}
}

func TestEndpointValidateAccepts(t *testing.T) {
	require.NoError(t, validEndpoint().Validate())
}

func TestEndpointValidateRejectsBadFilesystemID(t *testing.T) {
	e := validEndpoint()
	e.FilesystemID = "not-a-fsid"
	err := e.Validate()
	assert.Equal(t, kerr.Invalid, kerr.KindOf(err))
}

func TestEndpointValidateRejectsUnknownSquash(t *testing.T) {
	e := validEndpoint()
	e.Squash = "bogus"
	assert.Equal(t, kerr.Invalid, kerr.KindOf(e.Validate()))
}

func TestEndpointValidateRejectsUnknownAccessType(t *testing.T) {
	e := validEndpoint()
	e.AccessType = "bogus"
	assert.Equal(t, kerr.Invalid, kerr.KindOf(e.Validate()))
}

func TestEndpointValidateRejectsEmptyProtocols(t *testing.T) {
	e := validEndpoint()
	e.Protocols = nil
	assert.Equal(t, kerr.Invalid, kerr.KindOf(e.Validate()))
}

func TestEndpointValidateRejectsUnknownSecType(t *testing.T) {
	e := validEndpoint()
	e.SecType = "bogus"
	assert.Equal(t, kerr.Invalid, kerr.KindOf(e.Validate()))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw, err := Encode(validEndpoint())
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, validEndpoint(), got)
}

func TestEncodeRejectsInvalid(t *testing.T) {
	e := validEndpoint()
	e.FilesystemID = "bad"
	_, err := Encode(e)
	assert.Equal(t, kerr.Invalid, kerr.KindOf(err))
}

func TestListUpsertRendersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports.json")
	l := NewList(path)

	require.NoError(t, l.Upsert("fs1", validEndpoint()))

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "fs1", snap[0].FSName)

	var named []Named
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &named))
	require.Len(t, named, 1)
	assert.Equal(t, "fs1", named[0].FSName)
}

func TestListUpsertInvalidLeavesPreviousFileInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports.json")
	l := NewList(path)
	require.NoError(t, l.Upsert("fs1", validEndpoint()))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := validEndpoint()
	bad.FilesystemID = "not-valid"
	err = l.Upsert("fs2", bad)
	require.Error(t, err)

	// fs2 never took effect in memory.
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "fs1", snap[0].FSName)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestListRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports.json")
	l := NewList(path)
	require.NoError(t, l.Upsert("fs1", validEndpoint()))
	require.NoError(t, l.Remove("fs1"))
	assert.Empty(t, l.Snapshot())
}
