package main

import (
	"fmt"
	"strings"

	"github.com/netplus/netprep/internal/apiclient"
	"github.com/netplus/netprep/internal/codec"
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "Send an authenticated GET request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := make(map[string]any, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid param %q, want key=value", p)
				}
				query[k] = v
			}

			return runWithApp(cmd, func(a *app) error {
				resp, err := a.client.Get(cmd.Context(), args[0], apiclient.RequestConfig{Params: query})
				if err != nil {
					return err
				}

				if s, ok := resp.Data.(string); ok {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
					return err
				}
				out, err := codec.MarshalIndent(resp.Data, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "q", nil, "Query parameter as key=value, repeatable")
	return cmd
}
