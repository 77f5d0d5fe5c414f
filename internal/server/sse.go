package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentdeck/agentdeck/internal/event"
)

// SDKEvent is the wire shape of one streamed notification.
// Consumers expect: {"type": "...", "properties": {...}}
type SDKEvent struct {
	Type       event.Type `json:"type"`
	Properties any        `json:"properties"`
}

// SSEHeartbeatInterval is the interval for SSE heartbeats.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// writeEvent writes one SSE event frame.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	if err != nil {
		return err
	}

	// ResponseController flushes through middleware wrappers; fall back to
	// the plain Flusher if it cannot.
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}

	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// events handles GET /event.
//
// Streams every notification as SSE. An optional sessionID query parameter
// filters the stream to one session's events.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Flush headers immediately so the client sees the stream open before
	// the first notification arrives.
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	connected := SDKEvent{
		Type:       "server.connected",
		Properties: map[string]any{},
	}
	if err := sse.writeEvent("message", connected); err != nil {
		return
	}

	// Small buffer keeps streaming low latency; a slow client drops events
	// rather than stalling the publisher.
	events := make(chan event.Event, 10)

	unsub := s.bus.SubscribeAll(func(e event.Event) {
		if sessionID != "" && e.SessionID != sessionID {
			return
		}
		select {
		case events <- e:
		default:
			s.log.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			data := SDKEvent{
				Type:       e.Type,
				Properties: e.Data,
			}
			if err := sse.writeEvent("message", data); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
