// Package oplock provides per-target mutual exclusion: at most one in-flight
// reconcile, sync, or merge operation per deployment id. Concurrent requests
// for the same id are rejected with ErrBusy rather than queued.
package oplock

import (
	"errors"
	"sync"
)

// ErrBusy means another operation already holds the target.
var ErrBusy = errors.New("another operation is in flight for this target")

// Table tracks held target ids.
type Table struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{held: make(map[string]struct{})}
}

// Acquire claims the id, returning a release function, or ErrBusy if the id
// is already held. The release function is idempotent.
func (t *Table) Acquire(id string) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.held[id]; ok {
		return nil, ErrBusy
	}
	t.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.held, id)
			t.mu.Unlock()
		})
	}, nil
}
