// Package pending provides a keyed registry of in-flight human-approval
// requests, each awaiting external resolution by id.
package pending

import (
	"context"
	"sync"

	"github.com/agentdeck/agentdeck/internal/logging"
)

// Request is the metadata stored for one pending entry.
type Request[P any] struct {
	ID         string
	OwnerID    string
	ToolCallID string
	Payload    P
}

type outcome[R any] struct {
	value R
	err   error
}

type entry[P, R any] struct {
	req Request[P]
	ch  chan outcome[R]
}

// Table is a concurrency-safe registry of pending requests. P is the request
// payload type, R the resolution value type. A registered entry settles
// exactly once: the first Resolve or Reject wins and removes it.
type Table[P, R any] struct {
	mu      sync.Mutex
	entries map[string]*entry[P, R]
}

// NewTable creates an empty table.
func NewTable[P, R any]() *Table[P, R] {
	return &Table[P, R]{entries: make(map[string]*entry[P, R])}
}

// Waiter receives the resolution of one registered request.
type Waiter[R any] struct {
	ch <-chan outcome[R]
}

// Wait blocks until the request is resolved, rejected, or ctx ends.
func (w *Waiter[R]) Wait(ctx context.Context) (R, error) {
	var zero R
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case out := <-w.ch:
		if out.err != nil {
			return zero, out.err
		}
		return out.value, nil
	}
}

// Register stores a request and returns the waiter for its resolution.
func (t *Table[P, R]) Register(req Request[P]) *Waiter[R] {
	ch := make(chan outcome[R], 1)

	t.mu.Lock()
	t.entries[req.ID] = &entry[P, R]{req: req, ch: ch}
	t.mu.Unlock()

	return &Waiter[R]{ch: ch}
}

// Resolve settles a request with a value. Returns false if the id is unknown
// or already settled; callers must not treat that as fatal.
func (t *Table[P, R]) Resolve(id string, value R) bool {
	return t.settle(id, outcome[R]{value: value})
}

// Reject settles a request with a failure reason. Returns false if the id is
// unknown or already settled.
func (t *Table[P, R]) Reject(id string, reason error) bool {
	return t.settle(id, outcome[R]{err: reason})
}

func (t *Table[P, R]) settle(id string, out outcome[R]) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		logging.Warn().Str("requestID", id).Msg("pending request not found")
		return false
	}

	e.ch <- out
	return true
}

// Get returns the stored request metadata for an id.
func (t *Table[P, R]) Get(id string) (Request[P], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		var zero Request[P]
		return zero, false
	}
	return e.req, true
}

// List returns pending requests, optionally filtered by owner ("" = all).
func (t *Table[P, R]) List(ownerID string) []Request[P] {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Request[P]
	for _, e := range t.entries {
		if ownerID == "" || e.req.OwnerID == ownerID {
			out = append(out, e.req)
		}
	}
	return out
}

// Remove deletes an entry without settling it. It is the deregistration hook
// for waiters that already observed an outcome through another path (timeout,
// context cancellation); settled entries are already gone and this is a no-op.
func (t *Table[P, R]) Remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// RemoveAllForOwner rejects every entry belonging to an owner, so that any
// code awaiting resolution observes a deterministic failure rather than
// hanging forever. Returns the number of entries removed.
func (t *Table[P, R]) RemoveAllForOwner(ownerID string, reason error) int {
	t.mu.Lock()
	var removed []*entry[P, R]
	for id, e := range t.entries {
		if e.req.OwnerID == ownerID {
			removed = append(removed, e)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, e := range removed {
		e.ch <- outcome[R]{err: reason}
	}
	return len(removed)
}
