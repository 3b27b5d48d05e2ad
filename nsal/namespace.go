package nsal

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
)

// Namespace maps fs_name <-> fs_id <-> index_fid (spec §4.E). Endpoint is
// the opaque export-config JSON blob persisted alongside the namespace
// record and interpreted only by the upper export layer (package export).
type Namespace struct {
	ID       uint16
	Name     string
	Fid      kvs.IndexFID
	Endpoint []byte
}

// Registry is the namespace/index lifecycle manager: one Registry per
// process, backed by a single "system" KV index distinct from every FS's
// own tree index (spec §4.E groups NS records in their own key family).
type Registry struct {
	store kvs.Store
	sys   kvs.Index
}

// fsIDCounterKey reserves fs_id 0 (never a valid namespace id) as the
// monotonic fs_id counter's storage slot, the namespace-layer analogue of
// nsal.NextIno's INO_GEN record.
func fsIDCounterKey() []byte { return kvs.NamespaceIDKey(0) }

func OpenRegistry(ctx context.Context, store kvs.Store, sysFid kvs.IndexFID) (*Registry, error) {
	idx, err := store.IndexOpen(ctx, sysFid)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendTransient, err, "open namespace registry index")
	}
	return &Registry{store: store, sys: idx}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.store.IndexClose(ctx, r.sys)
}

type nsRecord struct {
	Name     string
	FidHi    uint64
	FidLo    uint64
	Endpoint []byte
}

func encodeNsRecord(rec nsRecord) []byte {
	b, _ := json.Marshal(rec)
	return b
}

func decodeNsRecord(b []byte) (nsRecord, error) {
	var rec nsRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nsRecord{}, err
	}
	return rec, nil
}

func nextFsID(kv KV) (uint16, error) {
	raw, err := kv.Get(fsIDCounterKey())
	var next uint16
	if err != nil {
		next = 1
	} else {
		next = uint16(binary.BigEndian.Uint16(raw)) + 1
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], next)
	if err := kv.Set(fsIDCounterKey(), buf[:]); err != nil {
		return 0, kerr.Wrap(kerr.BackendTransient, err, "allocate fs_id")
	}
	return next, nil
}

// NsCreate allocates a fresh fs_id and a fresh index fid, persists the
// namespace record under both the by-id and by-name keys, and returns it
// (spec §4.E "ns_create(name) -> (ns, size)"; "size" is the caller's
// concern — the namespace record itself is fixed-size metadata).
func (r *Registry) NsCreate(ctx context.Context, name string) (*Namespace, error) {
	kv := FromIndex(ctx, r.sys)

	nameKey, err := kvs.NamespaceNameKey(name)
	if err != nil {
		return nil, kerr.Wrap(kerr.NameTooLong, err, "namespace name %q", name)
	}
	if _, err := kv.Get(nameKey); err == nil {
		return nil, kerr.New(kerr.Exists, "namespace %q already exists", name)
	}

	fsID, err := nextFsID(kv)
	if err != nil {
		return nil, err
	}
	fid := kvs.IndexFID{Hi: uint64(fsID), Lo: 1}

	rec := nsRecord{Name: name, FidHi: fid.Hi, FidLo: fid.Lo}
	raw := encodeNsRecord(rec)
	if err := kv.Set(kvs.NamespaceIDKey(fsID), raw); err != nil {
		return nil, kerr.Wrap(kerr.BackendTransient, err, "persist namespace %q", name)
	}
	if err := kv.Set(nameKey, raw); err != nil {
		return nil, kerr.Wrap(kerr.BackendTransient, err, "persist namespace name %q", name)
	}

	return &Namespace{ID: fsID, Name: name, Fid: fid}, nil
}

// NsDelete removes both the by-id and by-name records for ns (spec §4.E
// "ns_delete"). Callers must have already verified the FS is empty and
// unexported per spec §3.5's FS lifecycle rule.
func (r *Registry) NsDelete(ctx context.Context, ns *Namespace) error {
	kv := FromIndex(ctx, r.sys)
	nameKey, err := kvs.NamespaceNameKey(ns.Name)
	if err != nil {
		return kerr.Wrap(kerr.NameTooLong, err, "namespace name %q", ns.Name)
	}
	if err := kv.Del(kvs.NamespaceIDKey(ns.ID)); err != nil {
		return kerr.Wrap(kerr.NotFound, err, "delete namespace %q", ns.Name)
	}
	_ = kv.Del(nameKey)
	return nil
}

// NsGetByName looks up a namespace record by name.
func (r *Registry) NsGetByName(ctx context.Context, name string) (*Namespace, error) {
	nameKey, err := kvs.NamespaceNameKey(name)
	if err != nil {
		return nil, kerr.Wrap(kerr.NameTooLong, err, "namespace name %q", name)
	}
	raw, err := r.sys.Get(ctx, nameKey)
	if err != nil {
		return nil, kerr.Wrap(kerr.NotFound, err, "namespace %q not found", name)
	}
	rec, err := decodeNsRecord(raw)
	if err != nil {
		return nil, kerr.Wrap(kerr.Invalid, err, "decode namespace %q", name)
	}
	// NsCreate mints the index fid as {Hi: fs_id, Lo: 1}.
	return &Namespace{ID: uint16(rec.FidHi), Name: rec.Name, Fid: kvs.IndexFID{Hi: rec.FidHi, Lo: rec.FidLo}, Endpoint: rec.Endpoint}, nil
}

// NsScan enumerates every persisted namespace, invoking cb once per record
// (spec §4.E "ns_scan(cb)", used to re-bind FS state on boot).
func (r *Registry) NsScan(ctx context.Context, cb func(*Namespace) error) error {
	prefix := kvs.NamespaceIDKey(0)
	prefix = prefix[:len(prefix)-2] // the (type,version) prefix alone, scanning all fs_ids
	it, err := r.sys.IterFind(ctx, prefix)
	if err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "scan namespaces")
	}
	defer it.Fini()

	for {
		ok, err := it.Next(ctx)
		if err != nil {
			return kerr.Wrap(kerr.BackendTransient, err, "scan namespaces")
		}
		if !ok || !hasPrefix(it.Key(), prefix) {
			return nil
		}
		fsID := binary.BigEndian.Uint16(it.Key()[len(prefix):])
		if fsID == 0 {
			continue // the fs_id counter slot, not a real namespace
		}
		rec, err := decodeNsRecord(it.Value())
		if err != nil {
			return kerr.Wrap(kerr.Invalid, err, "decode namespace record for fs_id %d", fsID)
		}
		ns := &Namespace{ID: fsID, Name: rec.Name, Fid: kvs.IndexFID{Hi: rec.FidHi, Lo: rec.FidLo}, Endpoint: rec.Endpoint}
		if err := cb(ns); err != nil {
			return err
		}
	}
}

// SetEndpoint persists an opaque export-config blob alongside ns's
// namespace record (spec §4.E: "An FS may simultaneously carry an endpoint
// binding... persisted alongside namespaces").
func (r *Registry) SetEndpoint(ctx context.Context, ns *Namespace, endpoint []byte) error {
	ns.Endpoint = endpoint
	rec := nsRecord{Name: ns.Name, FidHi: ns.Fid.Hi, FidLo: ns.Fid.Lo, Endpoint: endpoint}
	raw := encodeNsRecord(rec)
	kv := FromIndex(ctx, r.sys)
	if err := kv.Set(kvs.NamespaceIDKey(ns.ID), raw); err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "persist endpoint for %q", ns.Name)
	}
	nameKey, err := kvs.NamespaceNameKey(ns.Name)
	if err != nil {
		return kerr.Wrap(kerr.NameTooLong, err, "namespace name %q", ns.Name)
	}
	return kv.Set(nameKey, raw)
}

// OpenFS opens ns's tree index (spec §4.E "On FS open, the tree's KV index
// is opened via index_open(index_fid)").
func (r *Registry) OpenFS(ctx context.Context, ns *Namespace) (*Tree, error) {
	return Init(ctx, r.store, ns.Fid)
}

// CreateFS allocates a fresh namespace and its backing tree, creating the
// root node with rootAttr (spec §3.5 "FS: created by fs_create").
func (r *Registry) CreateFS(ctx context.Context, name string, rootAttr Stat) (*Namespace, *Tree, error) {
	ns, err := r.NsCreate(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	tree, err := Create(ctx, r.store, ns.Fid, rootAttr)
	if err != nil {
		return nil, nil, err
	}
	return ns, tree, nil
}

// DeleteFS destroys an empty FS: deletes the tree (root node + index) then
// removes the namespace record (spec §3.5 "fs_delete... only if it is
// empty and unexported" — emptiness/export checks are the caller's
// responsibility, enforced by server.DeleteFS before this is reached).
func (r *Registry) DeleteFS(ctx context.Context, ns *Namespace, tree *Tree) error {
	if err := tree.Delete(ctx); err != nil {
		return err
	}
	return r.NsDelete(ctx, ns)
}
