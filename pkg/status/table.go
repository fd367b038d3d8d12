// Package status holds the shared vertex-status table for a flow
// session. The table is the single mutable resource of the
// orchestrator: only the active attempt writes to it, while any number
// of observers (UI, CLI, tests) read it concurrently.
package status

import (
	"sync"
	"time"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

type entry struct {
	status    domain.BuildStatus
	startedAt time.Time
	duration  time.Duration
}

// Table maps vertex ids to their build status for one flow session.
// The zero value is not usable; use New.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty status table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Declare registers vertex ids without assigning them a run status.
// Undeclared vertices default to INACTIVE on read.
func (t *Table) Declare(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, ok := t.entries[id]; !ok {
			t.entries[id] = &entry{status: domain.StatusInactive}
		}
	}
}

// Set assigns a status to one vertex. Marking a vertex TO_BUILD also
// records its start timestamp; reaching a terminal state freezes its
// duration.
func (t *Table) Set(id string, s domain.BuildStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		e = &entry{}
		t.entries[id] = e
	}
	switch {
	case s == domain.StatusToBuild:
		e.startedAt = time.Now()
	case s.Terminal() && !e.startedAt.IsZero() && e.duration == 0:
		e.duration = time.Since(e.startedAt)
	}
	e.status = s
}

// MarkAll assigns the same status to every id.
func (t *Table) MarkAll(ids []string, s domain.BuildStatus) {
	for _, id := range ids {
		t.Set(id, s)
	}
}

// Get returns the status of one vertex. Unknown vertices report
// INACTIVE.
func (t *Table) Get(id string) domain.BuildStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[id]; ok {
		return e.status
	}
	return domain.StatusInactive
}

// StartedAt returns when the vertex was marked TO_BUILD. Zero for
// vertices that never entered the run scope.
func (t *Table) StartedAt(id string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[id]; ok {
		return e.startedAt
	}
	return time.Time{}
}

// Duration returns how long the vertex took from TO_BUILD to its
// terminal state. Zero until the vertex finishes.
func (t *Table) Duration(id string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[id]; ok {
		return e.duration
	}
	return 0
}

// Snapshot returns a copy of the full status map.
func (t *Table) Snapshot() map[string]domain.BuildStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.BuildStatus, len(t.entries))
	for id, e := range t.entries {
		out[id] = e.status
	}
	return out
}

// CountByStatus tallies vertices per status.
func (t *Table) CountByStatus() map[domain.BuildStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[domain.BuildStatus]int)
	for _, e := range t.entries {
		out[e.status]++
	}
	return out
}

// AnyPending reports whether any vertex is still TO_BUILD or BUILDING.
func (t *Table) AnyPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e.status == domain.StatusToBuild || e.status == domain.StatusBuilding {
			return true
		}
	}
	return false
}

// Reset clears the table for a new attempt.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
}
