package cfs

import (
	"context"
	"testing"
	"time"

	"github.com/kvsfs/kvsfs/clock"
	"github.com/kvsfs/kvsfs/dsal/memds"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/kvs/memkv"
	"github.com/kvsfs/kvsfs/nsal"
)

// newTestFS builds an *FS over in-memory backends with a deterministic
// clock, the same "fake everything, assert on behavior" shape the
// teacher's own fs_test.go suites use against gcsfake.
func newTestFS(t *testing.T) (*FS, *clock.SimulatedClock) {
	t.Helper()
	ctx := context.Background()

	store := memkv.NewStore()
	root := nsal.Stat{Mode: nsal.ModeDir | 0o755, Nlink: 2, Ino: kvs.RootNodeID.Lo}
	tree, err := nsal.Create(ctx, store, kvs.IndexFID{Hi: 1, Lo: 1}, root)
	if err != nil {
		t.Fatalf("nsal.Create: %v", err)
	}

	sc := clock.NewSimulatedClock(time.Unix(1000, 0))
	fs := &FS{
		Tree:  tree,
		DS:    memds.New(),
		Clock: sc,
		FsID:  1,
	}
	return fs, sc
}

var rootCred = Cred{UID: 0, GID: 0}

// nsalSetInoOID commits an INODE_OID record outside of any higher-level CFS
// operation — tests use this to wire a pre-created DSAL object to a node
// the way a real write path would via resolveOID, without needing a full
// create-with-data helper.
func nsalSetInoOID(fs *FS, ctx context.Context, id kvs.NodeID, oid kvs.ObjID) error {
	return fs.withTxn(ctx, func(kv nsal.KV) error {
		return nsal.SetInoOID(kv, id, oid)
	})
}
