package main

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "marketpulse",
		Short:         "Personal market monitor: scored snapshots, intraday alerts, weekly weight learning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")

	root.AddCommand(
		snapshotCmd(&configPath),
		alertsCmd(&configPath),
		learnCmd(&configPath),
		serveCmd(&configPath),
	)
	return root
}
