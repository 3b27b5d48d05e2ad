package cfs

import (
	"strings"

	"github.com/kvsfs/kvsfs/kerr"
)

const maxNameLen = 255

// validateName enforces spec §3.4 invariant 5: reject empty, ".", "..",
// any name containing "/", or a name longer than 255 bytes.
func validateName(name string) error {
	switch {
	case name == "":
		return kerr.New(kerr.Invalid, "empty name")
	case name == ".", name == "..":
		return kerr.New(kerr.Exists, "reserved name %q", name)
	case strings.Contains(name, "/"):
		return kerr.New(kerr.Invalid, "name %q contains '/'", name)
	case len(name) > maxNameLen:
		return kerr.New(kerr.NameTooLong, "name %q exceeds %d bytes", name, maxNameLen)
	}
	return nil
}
