package session

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentdeck/agentdeck/internal/event"
)

// isDefaultTitle checks if a title is still the auto-generated default.
func isDefaultTitle(title string) bool {
	return title == defaultTitle || strings.HasPrefix(title, defaultTitle)
}

// generateTitle derives a session title from the first prompt. Best-effort
// and fire-and-forget: failures are logged and swallowed, never surfaced to
// the turn that dispatched it.
func (o *Orchestrator) generateTitle(sessionID, prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var title string
	op := func() error {
		var err error
		title, err = o.querier.GenerateTitle(ctx, prompt)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		o.log.Debug().Err(err).Str("sessionID", sessionID).Msg("title generation failed")
		return
	}

	title = cleanTitle(title)
	if title == "" {
		return
	}
	if !o.registry.SetTitle(sessionID, title) {
		return
	}

	o.publish(event.SessionTitleUpdated, sessionID, event.SessionTitleUpdatedData{
		SessionID: sessionID,
		Title:     title,
	})
	if session, err := o.registry.Get(sessionID); err == nil {
		o.publish(event.SessionUpdated, sessionID, event.SessionUpdatedData{Info: session})
	}
}

// cleanTitle keeps the first non-empty line and bounds the length.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, line := range strings.Split(title, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			title = line
			break
		}
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}
	return title
}
