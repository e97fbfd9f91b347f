// Package cli provides the command-line interface for QuantDesk
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyike/QuantDesk/internal/display"
)

// Run executes the root command and exits non-zero on command misuse.
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		display.Error(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
