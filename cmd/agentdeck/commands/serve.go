package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/server"
	"github.com/agentdeck/agentdeck/internal/session"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
	serveEngine   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentdeck server",
	Long: `Start agentdeck as a headless server exposing the session API over HTTP
with notifications streamed as server-sent events on /event.

The --engine flag selects the backend query source. "scripted" is an
in-memory stub that accepts prompts and completes turns immediately; it
is intended for development and UI work against a live API surface.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
	serveCmd.Flags().StringVar(&serveEngine, "engine", "scripted", "Backend engine (scripted)")
}

func buildQuerier(engine string) (agent.Querier, error) {
	switch engine {
	case "scripted":
		return agent.NewScriptedQuerier(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	log := logging.Component("main")
	log.Info().Str("version", Version).Str("directory", workDir).Msg("starting agentdeck server")

	querier, err := buildQuerier(serveEngine)
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher()
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	watcher.Start()
	defer watcher.Stop()

	bus := event.NewBus()
	defer bus.Close()

	registry := session.NewRegistry()
	orchestrator := session.NewOrchestrator(registry, bus, querier,
		session.WithConfigSource(watcher))

	serverConfig := server.DefaultConfig()
	serverConfig.Hostname = serveHostname
	serverConfig.Port = servePort
	serverConfig.Directory = workDir

	srv := server.New(serverConfig, orchestrator, bus)

	go func() {
		log.Info().Str("addr", fmt.Sprintf("http://%s:%d", serveHostname, servePort)).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
	return nil
}
