package main

import (
	"fmt"
	"time"

	"rtsp-overlay/internal/stream"

	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe <source-uri>",
		Short: "Check that an RTSP source is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prober := stream.NewProber(ctx.cfg.FFprobePath, ctx.cfg.ProbeInternalTimeout, ctx.cfg.ProbeTimeout, ctx.log, nil)
			if err := prober.Test(cmd.Context(), args[0], timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", args[0])
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Outer probe timeout (default PROBE_TIMEOUT, max 60s)")
	return cmd
}
