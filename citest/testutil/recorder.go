package testutil

import (
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/event"
)

// Recorder captures every notification published on a bus, in order.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
	unsub  func()
}

// NewRecorder subscribes a recorder to the bus.
func NewRecorder(bus *event.Bus) *Recorder {
	r := &Recorder{}
	r.unsub = bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

// Stop unsubscribes the recorder.
func (r *Recorder) Stop() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}

// All returns a snapshot of the captured events.
func (r *Recorder) All() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the captured event types in publication order.
func (r *Recorder) Types() []event.Type {
	all := r.All()
	types := make([]event.Type, len(all))
	for i, e := range all {
		types[i] = e.Type
	}
	return types
}

// Reset discards previously captured events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// WaitFor blocks until an event of the given type has been captured and
// returns the first match. Returns false on timeout.
func (r *Recorder) WaitFor(t event.Type, timeout time.Duration) (event.Event, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, e := range r.All() {
			if e.Type == t {
				return e, true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return event.Event{}, false
}

// OfType returns all captured events of one type.
func (r *Recorder) OfType(t event.Type) []event.Event {
	var out []event.Event
	for _, e := range r.All() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
