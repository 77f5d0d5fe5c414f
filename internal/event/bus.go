// Package event provides the pub/sub notification bus using watermill.
package event

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type discriminates notification kinds published by the session core.
type Type string

const (
	SessionUpdated        Type = "session.updated"
	SessionIdle           Type = "session.idle"
	SessionError          Type = "session.error"
	SessionInit           Type = "session.init"
	SessionTitleUpdated   Type = "session.title-updated"
	MessageUpdated        Type = "message.updated"
	QuestionAsked         Type = "question.asked"
	QuestionAnswered      Type = "question.answered"
	PlanEnterRequested    Type = "plan.enter-requested"
	PlanExitRequested     Type = "plan.exit-requested"
	PlanApprovalRequested Type = "plan.approval-requested"
	PlanApprovalResponded Type = "plan.approval-responded"
	SystemCompact         Type = "system.compact"
	SystemMessage         Type = "system.message"
)

// Event is one notification published to subscribers.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"sessionID,omitempty"`
	Data      any    `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is an injectable event bus. It keeps watermill's gochannel for
// infrastructure while delivering through direct typed subscribers, so
// payloads keep their Go types.
//
// Publish fans out asynchronously; PublishSync delivers in the caller's
// goroutine and is what the orchestrator uses, because notifications for one
// session must preserve the order of the mutations that produced them.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[Type][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[Type][]subscriberEntry),
	}
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[t] = append(b.subscribers[t], subscriberEntry{id: id, fn: fn})

	return func() { b.unsubscribe(t, id) }
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[t]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

func (b *Bus) collect(t Type) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, entry := range b.subscribers[t] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Publish delivers an event to all subscribers, each in its own goroutine.
func (b *Bus) Publish(event Event) {
	for _, sub := range b.collect(event.Type) {
		go sub(event)
	}
}

// PublishSync delivers an event to all subscribers in the current goroutine.
func (b *Bus) PublishSync(event Event) {
	for _, sub := range b.collect(event.Type) {
		sub(event)
	}
}

// Close shuts down the bus and drops all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[Type][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
