// Command taps runs the post correction gate over transcript batches and
// carries reviewer decisions back into final text
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/LetsGoKDH/taps/internal/core/version"
	"github.com/LetsGoKDH/taps/internal/platform/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Get().Error().Err(err).Msg("taps failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taps",
		Short: "Gate ASR transcript rewrites and route risky spans to review",
		Long: `taps finds risky spans in ASR transcripts, asks a rewriter for
candidates, and either applies a safe rewrite, leaves the text alone, or
raises a review issue.

Configuration comes from TAPS_* environment variables; flags override them.`,
		Version:       version.Info("taps").Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newExportCmd(),
		newImportCmd(),
		newResolveCmd(),
		newServeCmd(),
		newPackCmd(),
	)
	return root
}
