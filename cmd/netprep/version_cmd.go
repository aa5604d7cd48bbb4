package main

import (
	"fmt"

	"github.com/netplus/netprep/internal/apiclient"
	"github.com/netplus/netprep/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Netprep version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\nUser-Agent: %s\n", version.WithApp(version.Detailed()), apiclient.UserAgent)
			return err
		},
	}
}
