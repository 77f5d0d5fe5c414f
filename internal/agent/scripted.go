package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/agentdeck/agentdeck/pkg/types"
)

// Step is one scripted action inside a turn.
type Step interface{ isStep() }

// EmitStep emits one event to the stream.
type EmitStep struct {
	Event Event
}

func (EmitStep) isStep() {}

// PermissionStep invokes the turn's permission callback and then emits the
// events matching the decision.
type PermissionStep struct {
	ToolName string
	Input    map[string]any
	CallID   string
	OnAllow  []Event
	OnDeny   []Event
}

func (PermissionStep) isStep() {}

// ScriptedQuerier replays pre-scripted turns. Each Query call consumes the
// next enqueued script; turns beyond the script produce an immediate success
// result. It also records every prompt and option set it receives.
type ScriptedQuerier struct {
	mu      sync.Mutex
	scripts [][]Step

	Prompts []string
	Options []QueryOptions

	Models []types.ModelInfo
	// TitleFunc overrides the default title derivation.
	TitleFunc func(prompt string) (string, error)
}

// NewScriptedQuerier creates a querier with the given turn scripts.
func NewScriptedQuerier(scripts ...[]Step) *ScriptedQuerier {
	return &ScriptedQuerier{
		scripts: scripts,
		Models: []types.ModelInfo{
			{ID: "default", DisplayName: "Default", Description: "Standard model"},
		},
	}
}

// EnqueueTurn appends another turn script.
func (q *ScriptedQuerier) EnqueueTurn(steps []Step) {
	q.mu.Lock()
	q.scripts = append(q.scripts, steps)
	q.mu.Unlock()
}

// Query implements Querier.
func (q *ScriptedQuerier) Query(ctx context.Context, prompt string, opts QueryOptions) (<-chan Event, error) {
	q.mu.Lock()
	q.Prompts = append(q.Prompts, prompt)
	q.Options = append(q.Options, opts)
	var steps []Step
	if len(q.scripts) > 0 {
		steps = q.scripts[0]
		q.scripts = q.scripts[1:]
	}
	q.mu.Unlock()

	ch := make(chan Event)
	go func() {
		defer close(ch)
		for _, step := range steps {
			switch s := step.(type) {
			case EmitStep:
				if !send(ctx, ch, s.Event) {
					return
				}
			case PermissionStep:
				events := s.OnDeny
				if opts.CanUseTool != nil {
					decision, err := opts.CanUseTool(ctx, s.ToolName, s.Input, ToolMeta{CallID: s.CallID})
					if err == nil && decision.Allowed() {
						events = s.OnAllow
					}
				}
				for _, ev := range events {
					if !send(ctx, ch, ev) {
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

func send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}

// ListModels implements Querier.
func (q *ScriptedQuerier) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	return q.Models, nil
}

// GenerateTitle implements Querier. The default derivation keeps the first
// few words of the prompt.
func (q *ScriptedQuerier) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	if q.TitleFunc != nil {
		return q.TitleFunc(prompt)
	}
	words := strings.Fields(prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " "), nil
}
