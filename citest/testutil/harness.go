// Package testutil provides helpers for the end-to-end scenario suite.
package testutil

import (
	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/session"
)

// StaticConfigSource serves a fixed configuration for every directory,
// keeping scenario runs independent of files on disk.
type StaticConfigSource struct {
	Resolved *config.Resolved
}

// Resolve implements session.ConfigSource.
func (s StaticConfigSource) Resolve(directory string) (*config.Resolved, error) {
	if s.Resolved != nil {
		return s.Resolved, nil
	}
	return &config.Resolved{}, nil
}

// Harness wires a complete in-process engine: registry, bus, scripted
// backend and orchestrator, with a recorder capturing every notification.
type Harness struct {
	Registry     *session.Registry
	Bus          *event.Bus
	Querier      *agent.ScriptedQuerier
	Orchestrator *session.Orchestrator
	Events       *Recorder
}

// NewHarness builds a harness whose backend plays the given turn scripts in
// order.
func NewHarness(scripts ...[]agent.Step) *Harness {
	registry := session.NewRegistry()
	bus := event.NewBus()
	querier := agent.NewScriptedQuerier(scripts...)

	orchestrator := session.NewOrchestrator(registry, bus, querier,
		session.WithConfigSource(StaticConfigSource{}))

	return &Harness{
		Registry:     registry,
		Bus:          bus,
		Querier:      querier,
		Orchestrator: orchestrator,
		Events:       NewRecorder(bus),
	}
}

// Close releases the harness.
func (h *Harness) Close() {
	h.Events.Stop()
	h.Bus.Close()
}
