package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwlsn/fetchray/internal/sweeper"
	"github.com/gwlsn/fetchray/internal/util"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete downloads older than the retention window once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			retention := cfg.Retention.Std()
			if olderThan > 0 {
				retention = olderThan
			}

			res := sweeper.New(cfg.DownloadDir, retention, cfg.SweepInterval.Std()).Sweep()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Swept %s (retention %s)\n", cfg.DownloadDir, util.FormatDuration(retention))
			fmt.Fprintf(out, "  Removed: %d files, %s\n", res.Removed, util.FormatBytes(res.Bytes))
			if res.Failed > 0 {
				fmt.Fprintf(out, "  Failed:  %d files\n", res.Failed)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override the configured retention window")
	return cmd
}
