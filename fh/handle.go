package fh

import (
	"context"

	"github.com/kvsfs/kvsfs/cfs"
	"github.com/kvsfs/kvsfs/kvs"
)

// Lookup resolves (parent, name) against fs and returns the child's FH
// (spec §4.I "lookup").
func Lookup(ctx context.Context, fsys *cfs.FS, parent FH, name string) (FH, error) {
	id, st, err := fsys.Lookup(ctx, parent.Node, name)
	if err != nil {
		return FH{}, err
	}
	return FromIno(parent.FsID, id, st), nil
}

// Refresh reloads the node's current stat into a fresh FH value, the path
// Getattr and other "I need the latest stat, not a possibly-stale cached
// one" callers take (spec §4.I "stat(fh)").
func Refresh(ctx context.Context, fsys *cfs.FS, h FH) (FH, error) {
	st, err := fsys.Getattr(ctx, h.Node)
	if err != nil {
		return FH{}, err
	}
	h.Stat = st
	return h, nil
}

// Destroy is the terminal step of delete-on-close (spec §4.I): called once
// the last open share on a regular file with nlink==0 closes. It has no
// state of its own beyond forwarding into cfs, since destroy-orphaned is a
// CFS-layer operation (cfs/orphan.go) — the FH layer only decides *when*
// to call it, via the open-state refcount in share.go/open.go.
func Destroy(ctx context.Context, fsys *cfs.FS, id kvs.NodeID) error {
	return fsys.DestroyOrphaned(ctx, id, false)
}

// Unlink wires table.IsOpen as the is-open predicate cfs.FS.Unlink needs
// to decide between destroying a node immediately and deferring to
// delete-on-close (spec §4.F "unlink", §4.I "delete-on-close"). When
// cfs reports the destroy as deferred, table.MarkNlinkZero arms the
// node so Close finishes the job once its last open share goes away —
// without this, Close's pending-destroy check (open.go) never fires and
// the node, and its backing DSAL object, leak forever.
func Unlink(ctx context.Context, fsys *cfs.FS, table *Table, cred cfs.Cred, parent kvs.NodeID, name string) error {
	result, err := fsys.Unlink(ctx, cred, parent, name, table.IsOpen)
	if err != nil {
		return err
	}
	if result.Deferred {
		table.MarkNlinkZero(result.Node)
	}
	return nil
}

// Rename wires table.IsOpen the same way for the overwritten-destination
// case in rename (spec §4.F "rename" step 7), arming MarkNlinkZero on the
// displaced node whenever cfs leaves its destruction pending because it
// is still open (spec §4.I "delete-on-close").
func Rename(ctx context.Context, fsys *cfs.FS, table *Table, cred cfs.Cred, srcDir kvs.NodeID, srcName string, dstDir kvs.NodeID, dstName string) (cfs.RenameResult, error) {
	result, err := fsys.Rename(ctx, cred, srcDir, srcName, dstDir, dstName, table.IsOpen)
	if err != nil {
		return result, err
	}
	if result.Overwrote && !result.OverwroteWasDir && table.IsOpen(result.OverwroteNode) {
		table.MarkNlinkZero(result.OverwroteNode)
	}
	return result, nil
}
