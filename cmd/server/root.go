package main

import (
	"fmt"
	"log/slog"

	"rtsp-overlay/internal/platform/config"
	"rtsp-overlay/internal/platform/logger"

	"github.com/spf13/cobra"
)

// commandContext carries the configuration shared by every subcommand. It
// is filled in by the root command before any RunE executes.
type commandContext struct {
	envFile string
	cfg     *config.Config
	log     *slog.Logger
}

func (c *commandContext) load() error {
	var paths []string
	if c.envFile != "" {
		paths = append(paths, c.envFile)
	}
	if err := config.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Process()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.cfg = cfg
	c.log = logger.New(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "rtsp-overlay",
		Short:         "RTSP to HLS livestream service with overlay management",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", "", "Path to a .env file (default .env in the working directory)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))

	return rootCmd
}
