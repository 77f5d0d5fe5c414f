// Package session implements session lifecycle, the agent event loop, and the
// human-approval protocol.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentdeck/agentdeck/pkg/types"
)

const defaultTitle = "New Session"

// Registry is the in-memory store of sessions. All accessors return
// snapshots: live session structs never leave the lock, and stored messages
// are immutable once stored (replaced wholesale, never mutated in place), so
// callers can read and marshal results while a turn keeps running.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*types.Session)}
}

// Create creates a new session.
func (r *Registry) Create(title string) *types.Session {
	if title == "" {
		title = defaultTitle
	}

	now := time.Now().UnixMilli()
	session := &types.Session{
		ID:     generateID(),
		Title:  title,
		Status: types.StatusIdle,
		Time: types.SessionTime{
			Created: now,
			Updated: now,
		},
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return session.Clone()
}

// Get retrieves a snapshot of a session by ID.
func (r *Registry) Get(sessionID string) (*types.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// List returns snapshots of all sessions ordered by creation time.
func (r *Registry) List() []*types.Session {
	r.mu.RLock()
	sessions := make([]*types.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Time.Created < sessions[j].Time.Created
	})
	return sessions
}

// Delete removes a session. The orchestrator is responsible for cancelling
// any in-flight turn and rejecting pending requests before calling this.
func (r *Registry) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	return nil
}

// BeginTurn atomically transitions a session to running and stores the turn's
// cancellation handle. Fails without mutating anything if the session is
// unknown or already running.
func (r *Registry) BeginTurn(sessionID string, cancel context.CancelFunc) (*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Status == types.StatusRunning {
		return nil, ErrSessionBusy
	}

	session.Status = types.StatusRunning
	session.Cancel = cancel
	session.LastError = nil
	session.Time.Updated = time.Now().UnixMilli()
	return session.Clone(), nil
}

// EndTurn transitions a session out of running, clears the cancellation
// handle and records the final error text if any.
func (r *Registry) EndTurn(sessionID string, status types.SessionStatus, lastError *string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	session.Status = status
	session.Cancel = nil
	session.LastError = lastError
	session.Time.Updated = time.Now().UnixMilli()
}

// TakeCancel removes and returns the session's cancellation handle, if any.
func (r *Registry) TakeCancel(sessionID string) context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.Cancel == nil {
		return nil
	}
	cancel := session.Cancel
	session.Cancel = nil
	return cancel
}

// AppendMessage appends a message to a session. The caller hands over
// ownership: the message must not be mutated after this call.
func (r *Registry) AppendMessage(sessionID string, msg *types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	session.Messages = append(session.Messages, msg)
	session.Time.Updated = time.Now().UnixMilli()
}

// UpsertMessage stores a message snapshot: an existing message with the same
// ID is replaced wholesale, otherwise the snapshot is appended. Replacement
// keeps the stored list immutable-once-stored for concurrent readers.
func (r *Registry) UpsertMessage(sessionID string, msg *types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for i, existing := range session.Messages {
		if existing.ID == msg.ID {
			session.Messages[i] = msg
			session.Time.Updated = time.Now().UnixMilli()
			return
		}
	}
	session.Messages = append(session.Messages, msg)
	session.Time.Updated = time.Now().UnixMilli()
}

// Messages returns a snapshot of a session's message list.
func (r *Registry) Messages(sessionID string) ([]*types.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	msgs := make([]*types.Message, len(session.Messages))
	copy(msgs, session.Messages)
	return msgs, nil
}

// SetTitle updates a session's title.
func (r *Registry) SetTitle(sessionID, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	session.Title = title
	session.Time.Updated = time.Now().UnixMilli()
	return true
}

// SetResumeToken stores the backend resume token. The token is set once on
// the first turn and kept for the session's lifetime.
func (r *Registry) SetResumeToken(sessionID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.ResumeToken != "" {
		return
	}
	session.ResumeToken = token
}

// SetInit stores the backend's init snapshot for a session.
func (r *Registry) SetInit(sessionID string, init *types.SessionInitData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[sessionID]; ok {
		session.Init = init
	}
}

// MarkTitleStarted sets the title-generation guard flag. Returns false if it
// was already set, so a second turn never dispatches a duplicate job.
func (r *Registry) MarkTitleStarted(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.TitleStarted {
		return false
	}
	session.TitleStarted = true
	return true
}

// generateID returns a new opaque identifier.
func generateID() string {
	return ulid.Make().String()
}
