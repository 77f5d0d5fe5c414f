// Package commands provides the CLI commands for agentdeck.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "agentdeck",
	Short: "agentdeck - session orchestration for a coding-agent backend",
	Long: `agentdeck bridges a streaming coding-agent backend to UI consumers.

It manages sessions, normalizes the backend's event stream into stable
message records, brokers human approvals (questions and plan reviews),
and fans notifications out over an HTTP/SSE API.

Run 'agentdeck serve' to start the server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Local development keeps credentials in .env; absence is fine.
		_ = godotenv.Load()

		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: prettyLogs,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable console logs")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agentdeck %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(modelsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
