package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/assessgen-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.RunServer(ctx)
		})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for asynchronous extraction jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.RunWorker(ctx)
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale extraction artifacts from the work root once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			rep, err := a.Sweep(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("scanned=%d removed_aged=%d removed_quota=%d bytes_freed=%d failures=%d\n",
				rep.Scanned, rep.RemovedAged, rep.RemovedQuota, rep.BytesFreed, rep.Failures)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, sweepCmd)
}
