package testutil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/server"
	"github.com/agentdeck/agentdeck/internal/session"
)

// TestServer runs the HTTP API backed by a scripted engine.
type TestServer struct {
	Server       *server.Server
	BaseURL      string
	Orchestrator *session.Orchestrator
	Querier      *agent.ScriptedQuerier
	Bus          *event.Bus
	port         int
}

// StartTestServer starts a server on an ephemeral port and waits until it
// answers.
func StartTestServer(scripts ...[]agent.Step) (*TestServer, error) {
	port, err := findAvailablePort()
	if err != nil {
		return nil, fmt.Errorf("find port: %w", err)
	}

	registry := session.NewRegistry()
	bus := event.NewBus()
	querier := agent.NewScriptedQuerier(scripts...)
	orchestrator := session.NewOrchestrator(registry, bus, querier,
		session.WithConfigSource(StaticConfigSource{}))

	cfg := server.DefaultConfig()
	cfg.Port = port
	srv := server.New(cfg, orchestrator, bus)

	go func() {
		_ = srv.Start()
	}()

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	if err := waitForServer(baseURL, 10*time.Second); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		bus.Close()
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Server:       srv,
		BaseURL:      baseURL,
		Orchestrator: orchestrator,
		Querier:      querier,
		Bus:          bus,
		port:         port,
	}, nil
}

// Stop shuts down the test server.
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := ts.Server.Shutdown(ctx)
	ts.Bus.Close()
	return err
}

func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/session")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}
