// Package cli implements the reconcile command line tool.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Execute runs the root command until it finishes or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRoot().ExecuteContext(ctx)
}

// NewRoot builds the command tree
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile supplier invoices against purchase orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		RunCmd(),
		ExplainCmd(),
	)
	return root
}
