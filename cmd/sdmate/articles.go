package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chadiek/sd-mate/internal/catalog"
)

func newArticlesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List the curated articles and session lengths",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"articles": catalog.Articles(), "durations": catalog.Durations()})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tURL")
			for _, a := range catalog.Articles() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Title, a.URL)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, d := range catalog.Durations() {
				fmt.Fprintf(out, "%d (%s)\n", d.Seconds, d.Label)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
