package export

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/kvsfs/kvsfs/kerr"
)

// List is the in-memory mirror of every endpoint currently bound to a
// namespace, mutated in place on add/remove and re-rendered to the host
// config file as a whole on every change (spec §9 "Endpoint list").
type List struct {
	mu   sync.Mutex
	path string
	byFS map[string]Endpoint
}

// NewList creates a List that renders to path on every mutation.
func NewList(path string) *List {
	return &List{path: path, byFS: make(map[string]Endpoint)}
}

// Upsert adds or replaces fsName's endpoint binding and re-renders the
// config file. If rendering the new list fails validation, the in-memory
// map is rolled back and the previous on-disk file is left untouched (spec
// §9: "rendering that fails validation leaves the previous file in place").
func (l *List) Upsert(fsName string, e Endpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, hadPrev := l.byFS[fsName]
	l.byFS[fsName] = e
	if err := l.renderLocked(); err != nil {
		if hadPrev {
			l.byFS[fsName] = prev
		} else {
			delete(l.byFS, fsName)
		}
		return err
	}
	return nil
}

// Remove deletes fsName's endpoint binding and re-renders.
func (l *List) Remove(fsName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, hadPrev := l.byFS[fsName]
	if !hadPrev {
		return nil
	}
	delete(l.byFS, fsName)
	if err := l.renderLocked(); err != nil {
		l.byFS[fsName] = prev
		return err
	}
	return nil
}

// Snapshot returns a stably-ordered copy of every currently-bound endpoint.
func (l *List) Snapshot() []Named {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Named, 0, len(l.byFS))
	for name, ep := range l.byFS {
		out = append(out, Named{FSName: name, Endpoint: ep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FSName < out[j].FSName })
	return out
}

// renderLocked marshals the current endpoint list, re-parses it as a
// self-check, and only then stages it into place via renameio so a reader
// never observes a partially-written file (spec §9 "staged write then
// rename"). l.mu must be held.
func (l *List) renderLocked() error {
	named := make([]Named, 0, len(l.byFS))
	for name, ep := range l.byFS {
		if err := ep.Validate(); err != nil {
			return kerr.Wrap(kerr.Invalid, err, "endpoint for %q fails validation", name)
		}
		named = append(named, Named{FSName: name, Endpoint: ep})
	}
	sort.Slice(named, func(i, j int) bool { return named[i].FSName < named[j].FSName })

	b, err := json.MarshalIndent(named, "", "  ")
	if err != nil {
		return kerr.Wrap(kerr.Invalid, err, "marshal endpoint list")
	}
	var roundTrip []Named
	if err := json.Unmarshal(b, &roundTrip); err != nil {
		return kerr.Wrap(kerr.Invalid, err, "rendered endpoint list does not parse back")
	}

	if err := renameio.WriteFile(l.path, b, 0644); err != nil {
		return kerr.Wrap(kerr.BackendTransient, err, "stage endpoint config to %q", l.path)
	}
	return nil
}
