package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/nsal"
)

// RenameResult reports whether the destination was overwritten and, if so,
// which node was displaced — the caller (package fh) uses this to decide
// whether a destroy-on-close is still pending for an open former
// destination.
type RenameResult struct {
	Overwrote       bool
	OverwroteNode   kvs.NodeID
	OverwroteWasDir bool
}

// Rename implements spec §4.F "rename": the most complex CFS operation,
// handling overwrite of an existing destination (same-kind check, empty-
// dir check, orphan handling) and same-directory vs cross-directory moves
// (dentry-only rename vs detach+attach with link-count adjustment).
// isDstOpen reports whether a displaced regular-file destination still has
// an open share, deferring its destruction to that open's eventual close
// (spec §4.I).
func (fs *FS) Rename(ctx context.Context, cred Cred, srcDir kvs.NodeID, srcName string, dstDir kvs.NodeID, dstName string, isDstOpen func(kvs.NodeID) bool) (RenameResult, error) {
	var result RenameResult
	var destroyTarget kvs.NodeID
	var shouldDestroy bool

	err := fs.withTxn(ctx, func(kv nsal.KV) error {
		srcDirStat, err := nsal.LoadStat(kv, srcDir)
		if err != nil {
			return err
		}
		if err := Check(cred, srcDirStat, AccessDeleteEntity); err != nil {
			return err
		}

		sameDir := srcDir == dstDir
		var dstDirStat nsal.Stat
		if sameDir {
			dstDirStat = srcDirStat
		} else {
			dstDirStat, err = nsal.LoadStat(kv, dstDir)
			if err != nil {
				return err
			}
			if err := Check(cred, dstDirStat, AccessCreateEntity); err != nil {
				return err
			}
		}

		srcID, err := nsal.Lookup(kv, srcDir, srcName)
		if err != nil {
			return err
		}
		srcStat, err := nsal.LoadStat(kv, srcID)
		if err != nil {
			return err
		}

		dstID, dstErr := nsal.Lookup(kv, dstDir, dstName)
		overwrite := dstErr == nil

		now := fs.now()

		if overwrite {
			dstStat, err := nsal.LoadStat(kv, dstID)
			if err != nil {
				return err
			}
			if nsal.IsDir(srcStat.Mode) != nsal.IsDir(dstStat.Mode) {
				return kerr.New(kerr.NotDir, "rename: src/dst kind mismatch")
			}
			if nsal.IsDir(dstStat.Mode) {
				has, err := nsal.HasChildren(ctx, kv, dstID)
				if err != nil {
					return err
				}
				if has {
					return kerr.New(kerr.Exists, "rename: destination directory %q not empty", dstName)
				}
				if err := nsal.Detach(kv, dstDir, dstName); err != nil {
					return err
				}
				if err := nsal.DeleteStat(kv, dstID); err != nil {
					return err
				}
				_ = nsal.DelOID(kv, dstID)
				parentStat := &dstDirStat
				if sameDir {
					parentStat = &srcDirStat
				}
				if err := parentStat.Amend(nsal.AmendDecrLink, nsal.Stat{}, now); err != nil {
					return err
				}
				result.OverwroteWasDir = true
			} else {
				if err := nsal.Detach(kv, dstDir, dstName); err != nil {
					return err
				}
				if err := dstStat.Amend(nsal.AmendCtime|nsal.AmendDecrLink, nsal.Stat{}, now); err != nil {
					return err
				}
				if err := nsal.DumpStat(kv, dstID, dstStat); err != nil {
					return err
				}
			}
			result.Overwrote = true
			result.OverwroteNode = dstID
		}

		if sameDir {
			if err := nsal.Detach(kv, srcDir, srcName); err != nil {
				return err
			}
			if err := nsal.Attach(kv, srcDir, srcID, dstName); err != nil {
				return err
			}
			if err := srcDirStat.Amend(nsal.AmendCtime, nsal.Stat{}, now); err != nil {
				return err
			}
			return nsal.DumpStat(kv, srcDir, srcDirStat)
		}

		if err := nsal.Detach(kv, srcDir, srcName); err != nil {
			return err
		}
		if err := nsal.Attach(kv, dstDir, srcID, dstName); err != nil {
			return err
		}

		srcFlags := nsal.AmendMtime | nsal.AmendCtime
		dstFlags := nsal.AmendMtime | nsal.AmendCtime
		if nsal.IsDir(srcStat.Mode) {
			srcFlags |= nsal.AmendDecrLink
			dstFlags |= nsal.AmendIncrLink
		}
		if err := srcDirStat.Amend(srcFlags, nsal.Stat{}, now); err != nil {
			return err
		}
		if err := nsal.DumpStat(kv, srcDir, srcDirStat); err != nil {
			return err
		}
		if err := dstDirStat.Amend(dstFlags, nsal.Stat{}, now); err != nil {
			return err
		}
		return nsal.DumpStat(kv, dstDir, dstDirStat)
	})
	if err != nil {
		return RenameResult{}, err
	}

	// Step 7: if we overwrote a regular file and it isn't open, destroy the
	// orphaned former destination now (spec §4.F step 7).
	if result.Overwrote && !result.OverwroteWasDir {
		open := isDstOpen != nil && isDstOpen(result.OverwroteNode)
		if !open {
			destroyTarget = result.OverwroteNode
			shouldDestroy = true
		}
	}
	if shouldDestroy {
		if err := fs.destroyOrphaned(ctx, destroyTarget, false); err != nil {
			return result, err
		}
	}
	return result, nil
}
