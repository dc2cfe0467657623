// Package registry maps session ids to the OS process ids of their workers.
// Every registration gets a run id that is unique for the life of the
// process and larger than any earlier one.
package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// FirstRunID is the first run id issued. It is large enough that run ids
// are not mistaken for pids in logs.
const FirstRunID uint64 = 1_000_000

// Record is one registration.
type Record struct {
	RunID     uint64 `json:"run_id"`
	SessionID string `json:"session_id"`
	PID       int    `json:"pid"`
}

// Registry is safe for concurrent use. Registrations are serialized.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	records map[string]Record
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		next:    FirstRunID,
		records: make(map[string]Record),
	}
}

// Register records pid under sessionID and returns the new record. An empty
// sessionID is replaced by a generated one. Registering a session again
// replaces its record with a fresh run id.
func (r *Registry) Register(sessionID string, pid int) Record {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := Record{RunID: r.next, SessionID: sessionID, PID: pid}
	r.next++
	r.records[sessionID] = rec
	return rec
}

// Unregister removes sessionID and reports whether it was registered.
func (r *Registry) Unregister(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[sessionID]
	delete(r.records, sessionID)
	return ok
}

// Lookup returns the record for sessionID.
func (r *Registry) Lookup(sessionID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[sessionID]
	return rec, ok
}

// List returns every record ordered by run id.
func (r *Registry) List() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out
}
