package cfs

import (
	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/nsal"
)

// AccessFlag is the set of access checks CFS operations request (spec
// §4.F "access check").
type AccessFlag uint32

const (
	AccessRead AccessFlag = 1 << iota
	AccessWrite
	AccessExec
	AccessSetattr
	AccessListDir
	AccessCreateEntity
	AccessDeleteEntity
)

// The three permission bits within any one triad (owner/group/other).
const (
	bitRead  = 0o4
	bitWrite = 0o2
	bitExec  = 0o1
)

// requiredBits maps a requested AccessFlag set to the 3-bit mask it
// demands from whichever triad applies (owner/group/other).
func requiredBits(flags AccessFlag) uint32 {
	var bits uint32
	if flags&(AccessRead|AccessListDir) != 0 {
		bits |= bitRead
	}
	if flags&(AccessWrite|AccessSetattr|AccessCreateEntity|AccessDeleteEntity) != 0 {
		bits |= bitWrite
	}
	if flags&AccessExec != 0 {
		bits |= bitExec
	}
	return bits
}

// Check implements the access-check triad from spec §4.F:
//  1. uid==root -> allow.
//  2. For SETATTR only, owner is always allowed.
//  3. Choose owner/group/other triad by uid/gid match.
//  4. Verify the required bits are all set in that triad.
func Check(cred Cred, st nsal.Stat, flags AccessFlag) error {
	if cred.IsRoot() {
		return nil
	}
	if flags == AccessSetattr && cred.UID == st.UID {
		return nil
	}

	required := requiredBits(flags)

	var triad uint32
	switch {
	case cred.UID == st.UID:
		triad = (st.Mode >> 6) & 0o7
	case cred.GID == st.GID:
		triad = (st.Mode >> 3) & 0o7
	default:
		triad = st.Mode & 0o7
	}

	if required&triad != required {
		return kerr.New(kerr.PermissionDenied, "access denied: uid=%d gid=%d mode=%o flags=%b", cred.UID, cred.GID, st.Mode, flags)
	}
	return nil
}
