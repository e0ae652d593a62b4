package main

import (
	"os"

	"github.com/wonny/horizon/backend/cmd/horizon/commands"
)

// main is the entry point for the Horizon CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
