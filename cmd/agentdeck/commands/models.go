package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsEngine string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available backend models",
	Long: `List the models the configured backend engine can run.

Examples:
  agentdeck models
  agentdeck models --engine scripted`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsEngine, "engine", "scripted", "Backend engine (scripted)")
}

func runModels(cmd *cobra.Command, args []string) error {
	querier, err := buildQuerier(modelsEngine)
	if err != nil {
		return err
	}

	models, err := querier.ListModels(context.Background())
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\t")
	for _, model := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", model.ID, model.DisplayName, model.Description)
	}
	return w.Flush()
}
