package server

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/event"
)

type mockResponseWriter struct {
	*httptest.ResponseRecorder
	flushed int
}

func (m *mockResponseWriter) Flush() {
	m.flushed++
}

type noFlushWriter struct{}

func (noFlushWriter) Header() http.Header       { return http.Header{} }
func (noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (noFlushWriter) WriteHeader(int)           {}

func TestSSEWriterWriteEvent(t *testing.T) {
	w := &mockResponseWriter{ResponseRecorder: httptest.NewRecorder()}
	sse, err := newSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.writeEvent("message", SDKEvent{Type: "server.connected", Properties: map[string]any{}}))

	body := w.Body.String()
	assert.Contains(t, body, "event: message\n")
	assert.Contains(t, body, `"type":"server.connected"`)
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	assert.NotZero(t, w.flushed)
}

func TestSSEWriterHeartbeat(t *testing.T) {
	w := &mockResponseWriter{ResponseRecorder: httptest.NewRecorder()}
	sse, err := newSSEWriter(w)
	require.NoError(t, err)

	sse.writeHeartbeat()
	assert.Contains(t, w.Body.String(), ": heartbeat\n")
}

func TestSSEWriterRequiresFlusher(t *testing.T) {
	_, err := newSSEWriter(noFlushWriter{})
	assert.Error(t, err)
}

// readFrames collects SSE data lines from the stream until the predicate
// matches one or the deadline passes.
func readFrames(t *testing.T, r *bufio.Reader, match func(line string) bool) []string {
	t.Helper()
	var frames []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			frames = append(frames, strings.TrimSpace(strings.TrimPrefix(line, "data: ")))
			if match(frames[len(frames)-1]) {
				return
			}
		}
	}()

	select {
	case <-done:
		return frames
	case <-time.After(3 * time.Second):
		t.Fatal("timed out reading SSE frames")
		return nil
	}
}

// publishUntil re-publishes an event on an interval until stopped, covering
// the window between the client connecting and the subscription registering.
func publishUntil(bus *event.Bus, e event.Event, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			bus.PublishSync(e)
		}
	}
}

func TestEventStreamDeliversNotifications(t *testing.T) {
	srv, _, bus := newTestServer(t, agent.NewScriptedQuerier())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/event")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	stop := make(chan struct{})
	defer close(stop)
	go publishUntil(bus, event.Event{
		Type:      event.SessionIdle,
		SessionID: "s1",
		Data:      event.SessionIdleData{SessionID: "s1"},
	}, stop)

	frames := readFrames(t, bufio.NewReader(resp.Body), func(line string) bool {
		return strings.Contains(line, "session.idle")
	})
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0], "server.connected")
	assert.Contains(t, frames[len(frames)-1], `"sessionID":"s1"`)
}

func TestEventStreamFiltersBySession(t *testing.T) {
	srv, _, bus := newTestServer(t, agent.NewScriptedQuerier())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/event?sessionID=s2")
	require.NoError(t, err)
	defer resp.Body.Close()

	stop := make(chan struct{})
	defer close(stop)
	go publishUntil(bus, event.Event{Type: event.SessionIdle, SessionID: "s1", Data: event.SessionIdleData{SessionID: "s1"}}, stop)
	go publishUntil(bus, event.Event{Type: event.SessionIdle, SessionID: "s2", Data: event.SessionIdleData{SessionID: "s2"}}, stop)

	frames := readFrames(t, bufio.NewReader(resp.Body), func(line string) bool {
		return strings.Contains(line, "session.idle")
	})

	for _, frame := range frames {
		assert.NotContains(t, frame, `"sessionID":"s1"`)
	}
	assert.Contains(t, frames[len(frames)-1], `"sessionID":"s2"`)
}
