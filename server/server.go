// Package server wires every layer kvsfs needs for a runnable process
// (spec §1's end-to-end picture: KVS driver, DSAL backend, namespace
// registry, per-namespace CFS/FH state, the rendered export list) behind
// a single Open/Close lifecycle, the same role the teacher's fs.NewServer
// plays for gcsfuse: Open takes a resolved cfg.Config and returns
// something a thin CLI layer (or a test) can drive directly, with no
// cobra/viper involved on this side of the seam.
package server

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/kvsfs/kvsfs/cfg"
	"github.com/kvsfs/kvsfs/cfs"
	"github.com/kvsfs/kvsfs/clock"
	"github.com/kvsfs/kvsfs/dsal"
	"github.com/kvsfs/kvsfs/dsal/gcsds"
	"github.com/kvsfs/kvsfs/dsal/memds"
	"github.com/kvsfs/kvsfs/export"
	"github.com/kvsfs/kvsfs/fh"
	"github.com/kvsfs/kvsfs/internal/logger"
	"github.com/kvsfs/kvsfs/internal/metrics"
	"github.com/kvsfs/kvsfs/kerr"
	"github.com/kvsfs/kvsfs/kvs"
	"github.com/kvsfs/kvsfs/kvs/bboltkv"
	"github.com/kvsfs/kvsfs/kvs/memkv"
	"github.com/kvsfs/kvsfs/nsal"
)

// systemFID is the well-known index holding the namespace registry itself,
// distinct from every namespace's own tree index (nsal.OpenRegistry's
// sysFid parameter).
var systemFID = kvs.IndexFID{Hi: 0, Lo: 0}

// Mounted is one opened, servable filesystem: its namespace record, tree,
// and the decorated CFS/FH layers built on top of it.
type Mounted struct {
	NS    *nsal.Namespace
	FS    *cfs.Traced
	Table *fh.Table
}

// Server owns the process-wide backends and the set of namespaces opened
// against them, plus the rendered export list every bound namespace
// appears in (spec §6, §9).
type Server struct {
	cfg cfg.Config

	Store kvs.Store
	DS    dsal.Backend
	Clock clock.Clock

	Metrics *metrics.Metrics
	Exports *export.List

	registry *nsal.Registry

	mu  sync.Mutex
	fss map[string]*Mounted
}

// Open loads the configured KVS and DSAL backends, starts the namespace
// registry, and re-mounts every namespace already persisted in it (spec
// §4.E "ns_scan... re-bind FS state on boot"). The returned Server owns
// every resource it opened; callers must call Close.
func Open(ctx context.Context, c cfg.Config) (srv *Server, err error) {
	if err := logger.Init(c.Logging); err != nil {
		return nil, fmt.Errorf("server: init logging: %w", err)
	}

	store, err := openStore(c.KVS)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	ds, err := openDSAL(ctx, c.DSAL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = ds.Fini(ctx)
		}
	}()

	registry, err := nsal.OpenRegistry(ctx, store, systemFID)
	if err != nil {
		return nil, err
	}

	srv = &Server{
		cfg:      c,
		Store:    store,
		DS:       ds,
		Clock:    clock.RealClock{},
		Metrics:  metrics.New(),
		Exports:  export.NewList(string(c.Export.Path)),
		registry: registry,
		fss:      make(map[string]*Mounted),
	}

	if err := registry.NsScan(ctx, func(ns *nsal.Namespace) error {
		return srv.mount(ctx, ns)
	}); err != nil {
		_ = registry.Close(ctx)
		return nil, fmt.Errorf("server: re-mount namespaces: %w", err)
	}

	logger.Infof("server: opened %d namespace(s) on kvs=%s dsal=%s", len(srv.fss), c.KVS.Backend, c.DSAL.Backend)
	return srv, nil
}

func openStore(c cfg.KVSConfig) (kvs.Store, error) {
	switch c.Backend {
	case cfg.KVSBackendMem, "":
		return memkv.NewStore(), nil
	case cfg.KVSBackendBbolt:
		if c.Path == "" {
			return nil, kerr.New(kerr.Invalid, "kvs.path is required for the bbolt backend")
		}
		return bboltkv.Open(string(c.Path))
	default:
		return nil, kerr.New(kerr.Invalid, "unknown kvs backend %q", c.Backend)
	}
}

func openDSAL(ctx context.Context, c cfg.DSALConfig) (dsal.Backend, error) {
	var ds dsal.Backend
	switch c.Backend {
	case cfg.DSALBackendMem, "":
		ds = memds.New()
	case cfg.DSALBackendGCS:
		if c.Bucket == "" {
			return nil, kerr.New(kerr.Invalid, "dsal.bucket is required for the gcs backend")
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("server: new GCS client: %w", err)
		}
		ds = gcsds.New(client.Bucket(c.Bucket), "")
	default:
		return nil, kerr.New(kerr.Invalid, "unknown dsal backend %q", c.Backend)
	}
	if err := ds.Init(ctx); err != nil {
		return nil, fmt.Errorf("server: init dsal backend: %w", err)
	}
	return ds, nil
}

// mount builds the CFS/FH layer for an already-persisted namespace and
// registers it under both its name and fs_id.
func (s *Server) mount(ctx context.Context, ns *nsal.Namespace) error {
	tree, err := s.registry.OpenFS(ctx, ns)
	if err != nil {
		return fmt.Errorf("server: open fs %q: %w", ns.Name, err)
	}
	fsys := &cfs.FS{Tree: tree, DS: s.DS, Clock: s.Clock, FsID: ns.ID}
	m := &Mounted{NS: ns, FS: cfs.NewTraced(fsys, s.Metrics), Table: fh.NewTable(fsys)}

	s.mu.Lock()
	s.fss[ns.Name] = m
	s.mu.Unlock()

	if len(ns.Endpoint) > 0 {
		ep, err := export.Decode(ns.Endpoint)
		if err != nil {
			return fmt.Errorf("server: decode endpoint for %q: %w", ns.Name, err)
		}
		if err := s.Exports.Upsert(ns.Name, ep); err != nil {
			return fmt.Errorf("server: render endpoint for %q: %w", ns.Name, err)
		}
	}
	return nil
}

// CreateFS creates a brand-new, empty namespace (spec §3.5 "fs_create") and
// mounts it for immediate use.
func (s *Server) CreateFS(ctx context.Context, name string, rootAttr nsal.Stat) (*Mounted, error) {
	ns, _, err := s.registry.CreateFS(ctx, name, rootAttr)
	if err != nil {
		return nil, err
	}
	if err := s.mount(ctx, ns); err != nil {
		return nil, err
	}
	return s.Get(name), nil
}

// DeleteFS tears down a mounted, empty, unexported namespace (spec §3.5
// "fs_delete").
func (s *Server) DeleteFS(ctx context.Context, name string) error {
	m := s.Get(name)
	if m == nil {
		return kerr.New(kerr.NotFound, "namespace %q not mounted", name)
	}
	if len(m.NS.Endpoint) > 0 {
		return kerr.New(kerr.Invalid, "namespace %q is still exported; unbind its endpoint first", name)
	}
	tree := m.FS.Tree
	has, err := nsal.HasChildren(ctx, nsal.FromIndex(ctx, tree.Index()), tree.Root())
	if err != nil {
		return err
	}
	if has {
		return kerr.New(kerr.NotEmpty, "namespace %q is not empty", name)
	}
	if err := s.registry.DeleteFS(ctx, m.NS, m.FS.Tree); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.fss, name)
	s.mu.Unlock()
	_ = s.Exports.Remove(name)
	return nil
}

// BindEndpoint validates and persists an export endpoint for an already
// mounted namespace, then renders it into the export list (spec §6, §9).
func (s *Server) BindEndpoint(ctx context.Context, name string, ep export.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	m := s.Get(name)
	if m == nil {
		return kerr.New(kerr.NotFound, "namespace %q not mounted", name)
	}
	raw, err := export.Encode(ep)
	if err != nil {
		return err
	}
	if err := s.registry.SetEndpoint(ctx, m.NS, raw); err != nil {
		return err
	}
	return s.Exports.Upsert(name, ep)
}

// UnbindEndpoint removes name's export binding, both from the persisted
// namespace record and the rendered export list.
func (s *Server) UnbindEndpoint(ctx context.Context, name string) error {
	m := s.Get(name)
	if m == nil {
		return kerr.New(kerr.NotFound, "namespace %q not mounted", name)
	}
	if err := s.registry.SetEndpoint(ctx, m.NS, nil); err != nil {
		return err
	}
	return s.Exports.Remove(name)
}

// Get returns the mounted namespace by name, or nil if none is mounted
// under that name.
func (s *Server) Get(name string) *Mounted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fss[name]
}

// List returns every currently mounted namespace's record.
func (s *Server) List() []*nsal.Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*nsal.Namespace, 0, len(s.fss))
	for _, m := range s.fss {
		out = append(out, m.NS)
	}
	return out
}

// Close releases every backend Open acquired. The namespace registry, DSAL
// backend, and KVS store are independent resources, so they're torn down
// concurrently via errgroup rather than one after another — the same
// fan-out-on-independent-work shape spec §5's concurrency note calls for
// at the CFS/DSAL layer, applied here to shutdown instead of IO.
func (s *Server) Close(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.registry.Close(ctx) })
	g.Go(func() error { return s.DS.Fini(ctx) })
	g.Go(func() error { return s.Store.Close() })
	err := g.Wait()

	if cerr := logger.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
