package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/edgflow/lux-router/internal/logging"
	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			router := newApp(cfg, logging.NewDiscardLogger(), nil)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tHANDLER")
			for _, r := range router.Routes() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Method, r.Path, r.Handler)
			}
			return w.Flush()
		},
	}
}
