// Package export implements the NFS export/endpoint config surface (spec
// §6 "Export / endpoint config"): the JSON shape persisted per-namespace via
// nsal.Registry.SetEndpoint, its validation rules, and rendering the full
// endpoint list into a host-server config file.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/kvsfs/kvsfs/kerr"
)

// Squash is the client-credential-squashing policy for an endpoint.
type Squash string

const (
	SquashRoot           Squash = "root"
	SquashRootSquash     Squash = "root_squash"
	SquashRootsquash     Squash = "rootsquash"
	SquashRootID         Squash = "rootid"
	SquashRootIDSquash   Squash = "root_id_squash"
	SquashRootIDsquash   Squash = "rootidsquash"
	SquashAll            Squash = "all"
	SquashAllSquash      Squash = "all_squash"
	SquashAllsquash      Squash = "allsquash"
	SquashAllAnonymous   Squash = "all_anonymous"
	SquashAllanonymous   Squash = "allanonymous"
	SquashNoRootSquash   Squash = "no_root_squash"
	SquashNone           Squash = "none"
	SquashNoIDSquash     Squash = "noidsquash"
)

var validSquash = map[Squash]bool{
	SquashRoot: true, SquashRootSquash: true, SquashRootsquash: true,
	SquashRootID: true, SquashRootIDSquash: true, SquashRootIDsquash: true,
	SquashAll: true, SquashAllSquash: true, SquashAllsquash: true,
	SquashAllAnonymous: true, SquashAllanonymous: true,
	SquashNoRootSquash: true, SquashNone: true, SquashNoIDSquash: true,
}

// AccessType is the endpoint's read/write exposure.
type AccessType string

const (
	AccessNone      AccessType = "None"
	AccessRW        AccessType = "RW"
	AccessRO        AccessType = "RO"
	AccessMDOnly    AccessType = "MDONLY"
	AccessMDOnlyRO  AccessType = "MDONLY_RO"
)

var validAccessType = map[AccessType]bool{
	AccessNone: true, AccessRW: true, AccessRO: true,
	AccessMDOnly: true, AccessMDOnlyRO: true,
}

// SecType is the RPC security flavor required of clients.
type SecType string

const (
	SecNone  SecType = "none"
	SecSys   SecType = "sys"
	SecKrb5  SecType = "krb5"
	SecKrb5i SecType = "krb5i"
	SecKrb5p SecType = "krb5p"
)

var validSecType = map[SecType]bool{
	SecNone: true, SecSys: true, SecKrb5: true, SecKrb5i: true, SecKrb5p: true,
}

// Protocol is the NFS protocol version string accepted in an endpoint
// record; spec §6 only admits the v4 family (this system speaks NFSv4+).
type Protocol string

const (
	Protocol4     Protocol = "4"
	ProtocolNFS4  Protocol = "NFS4"
	ProtocolV4    Protocol = "V4"
	ProtocolNFSv4 Protocol = "NFSv4"
)

var validProtocol = map[Protocol]bool{
	Protocol4: true, ProtocolNFS4: true, ProtocolV4: true, ProtocolNFSv4: true,
}

var filesystemIDPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Endpoint is the JSON-shaped export binding of a namespace to an
// NFS-visible name and policy (spec §6 "Export / endpoint config"). It is
// the opaque blob stored as nsal.Namespace.Endpoint and rendered, as a
// whole list, into the host-server config file.
type Endpoint struct {
	Clients      []string   `json:"clients"`
	Squash       Squash     `json:"Squash"`
	AccessType   AccessType `json:"access_type"`
	Protocols    []Protocol `json:"protocols"`
	SecType      SecType    `json:"secType"`
	FilesystemID string     `json:"Filesystem_id"`
}

// Validate checks e against every recognized-field constraint in spec §6.
// Every field except Clients must hold a recognized value; Clients is not
// checked, so an empty client list is accepted.
func (e Endpoint) Validate() error {
	if !filesystemIDPattern.MatchString(e.FilesystemID) {
		return kerr.New(kerr.Invalid, "Filesystem_id %q does not match ^[0-9]+\\.[0-9]+$", e.FilesystemID)
	}
	if !validSquash[e.Squash] {
		return kerr.New(kerr.Invalid, "Squash %q is not a recognized squash policy", e.Squash)
	}
	if !validAccessType[e.AccessType] {
		return kerr.New(kerr.Invalid, "access_type %q is not a recognized access type", e.AccessType)
	}
	if !validSecType[e.SecType] {
		return kerr.New(kerr.Invalid, "secType %q is not a recognized security flavor", e.SecType)
	}
	if len(e.Protocols) == 0 {
		return kerr.New(kerr.Invalid, "protocols must name at least one NFS protocol version")
	}
	for _, p := range e.Protocols {
		if !validProtocol[p] {
			return kerr.New(kerr.Invalid, "protocol %q is not a recognized NFSv4 protocol string", p)
		}
	}
	return nil
}

// Encode validates e and marshals it to the JSON form persisted via
// nsal.Registry.SetEndpoint.
func Encode(e Endpoint) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, kerr.Wrap(kerr.Invalid, err, "encode endpoint")
	}
	return b, nil
}

// Decode parses and validates a previously-encoded endpoint blob.
func Decode(raw []byte) (Endpoint, error) {
	var e Endpoint
	if err := json.Unmarshal(raw, &e); err != nil {
		return Endpoint{}, kerr.Wrap(kerr.Invalid, err, "decode endpoint")
	}
	if err := e.Validate(); err != nil {
		return Endpoint{}, err
	}
	return e, nil
}

// Named pairs a namespace name with its endpoint binding, the unit the
// List/render layer (render.go) works with.
type Named struct {
	FSName   string   `json:"fs_name"`
	Endpoint Endpoint `json:"endpoint"`
}

func (n Named) String() string {
	return fmt.Sprintf("%s -> %s (%s)", n.FSName, n.Endpoint.FilesystemID, n.Endpoint.AccessType)
}
