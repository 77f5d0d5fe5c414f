package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	firstEventWarnAfter = 30 * time.Second
	stallWarnAfter      = 60 * time.Second
)

// watchdog logs when a turn's event stream looks stuck: a one-shot warning if
// the first event never arrives, and a periodic warning when the gap since
// the last event exceeds a threshold. Diagnostic only; it never cancels
// anything. Stop must run on every exit path of a turn.
type watchdog struct {
	log       zerolog.Logger
	sessionID string

	mu        sync.Mutex
	lastEvent time.Time
	gotFirst  bool

	first  *time.Timer
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func newWatchdog(log zerolog.Logger, sessionID string) *watchdog {
	w := &watchdog{
		log:       log,
		sessionID: sessionID,
		lastEvent: time.Now(),
		stopCh:    make(chan struct{}),
	}

	w.first = time.AfterFunc(firstEventWarnAfter, func() {
		w.mu.Lock()
		gotFirst := w.gotFirst
		w.mu.Unlock()
		if !gotFirst {
			w.log.Warn().
				Str("sessionID", sessionID).
				Dur("waited", firstEventWarnAfter).
				Msg("no first event from backend yet")
		}
	})

	w.ticker = time.NewTicker(stallWarnAfter / 2)
	go w.run()
	return w
}

func (w *watchdog) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.ticker.C:
			w.mu.Lock()
			gap := time.Since(w.lastEvent)
			gotFirst := w.gotFirst
			w.mu.Unlock()
			if gotFirst && gap > stallWarnAfter {
				w.log.Warn().
					Str("sessionID", w.sessionID).
					Dur("sinceLastEvent", gap).
					Msg("event stream stalled")
			}
		}
	}
}

// Kick records that an event arrived.
func (w *watchdog) Kick() {
	w.mu.Lock()
	w.lastEvent = time.Now()
	w.gotFirst = true
	w.mu.Unlock()
}

// Stop cancels both timers. Safe to call multiple times.
func (w *watchdog) Stop() {
	w.once.Do(func() {
		w.first.Stop()
		w.ticker.Stop()
		close(w.stopCh)
	})
}
