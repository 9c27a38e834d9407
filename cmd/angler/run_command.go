package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-angler/internal/app"
	"github.com/teslashibe/go-angler/internal/log"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts app.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start fishing",
		Long: "Capture the game window, detect the bobber and click when a fish bites.\n" +
			"Stop with Ctrl+C, the dashboard, or `angler ctl stop`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := log.L()

			a, err := app.New(cfg, opts, logger)
			if err != nil {
				return err
			}
			if err := a.Init(); err != nil {
				if shutdownErr := a.Shutdown(); shutdownErr != nil {
					logger.Warn("cleanup after failed start", "error", shutdownErr)
				}
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runErr := a.Run(runCtx)
			if err := a.Shutdown(); err != nil {
				logger.Warn("shutdown", "error", err)
			}
			if runErr != nil && runCtx.Err() == nil {
				return runErr
			}
			logger.Info("goodbye")
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Record clicks instead of moving the mouse")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "Open a preview window with detections (press q to quit)")
	cmd.Flags().BoolVar(&opts.Dashboard, "dashboard", false, "Serve the web dashboard")
	return cmd
}
