package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gwlsn/fetchray"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the fetchray version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fetchray v%s\n", fetchray.Version)
			return nil
		},
	}
}
