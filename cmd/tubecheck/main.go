package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BranchIntl/tubecheck/cmd/tubecheck/commands"
)

// Version information - set during build
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGQUIT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Errors are printed by the commands package with color formatting
	if err := commands.Execute(ctx, version); err != nil {
		stop()
		os.Exit(1)
	}
}
