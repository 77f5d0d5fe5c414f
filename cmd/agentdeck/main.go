// Package main provides the entry point for the agentdeck CLI.
package main

import (
	"fmt"
	"os"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
