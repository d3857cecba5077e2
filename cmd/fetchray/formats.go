package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gwlsn/fetchray/internal/engine"
	"github.com/gwlsn/fetchray/internal/util"
)

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "formats <url>",
		Short: "List the downloadable formats of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, err := ctx.newEngine(cmd)
			if err != nil {
				return err
			}

			url := args[0]

			probeCtx, cancel := context.WithTimeout(cmd.Context(), cfg.ProbeTimeout.Std())
			defer cancel()

			info, err := eng.Probe(probeCtx, url, engine.ProbeOptions{
				CookieFile: engine.CookieJarFromConfig(cfg).FileFor(url),
			})
			if err != nil {
				return err
			}

			summary := engine.Summarize(info)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			out := cmd.OutOrStdout()
			printSummary(out, summary, isTerminal(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")
	return cmd
}

func printSummary(w io.Writer, s *engine.Summary, fancy bool) {
	fmt.Fprintf(w, "%s\n", s.Title)
	fmt.Fprintf(w, "  Uploader: %s\n", s.Uploader)
	fmt.Fprintf(w, "  Duration: %s\n", s.DurationString)
	fmt.Fprintf(w, "  Views:    %d\n", s.ViewCount)
	fmt.Fprintln(w)

	if len(s.VideoFormats) > 0 {
		fmt.Fprintln(w, "Video")
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "Ext", "Height", "FPS", "Size", "Label"},
			formatRows(s.VideoFormats, true),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			fancy,
		))
		fmt.Fprintln(w)
	}

	if len(s.AudioFormats) > 0 {
		fmt.Fprintln(w, "Audio")
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "Ext", "Bitrate", "Size", "Label"},
			formatRows(s.AudioFormats, false),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			fancy,
		))
	}
}

func formatRows(formats []engine.FormatDescriptor, video bool) [][]string {
	rows := make([][]string, 0, len(formats))
	for _, f := range formats {
		size := "?"
		if f.Filesize != nil {
			size = util.FormatBytes(*f.Filesize)
		}
		if video {
			rows = append(rows, []string{
				f.FormatID, f.Ext,
				fmt.Sprintf("%dp", f.Height),
				fmt.Sprintf("%.0f", f.FPS),
				size, f.Label,
			})
			continue
		}
		rows = append(rows, []string{
			f.FormatID, f.Ext,
			fmt.Sprintf("%.0fk", f.ABR),
			size, f.Label,
		})
	}
	return rows
}
