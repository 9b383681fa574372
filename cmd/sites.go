package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSitesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "利用可能なサイト定義を一覧表示します",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sites, err := a.loadSites()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBASE URL\tSTRATEGY\tCHANNELS")
			for _, name := range sites.Names() {
				s, err := sites.Site(name)
				if err != nil {
					return err
				}
				strategy, err := s.Strategy()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", name, s.BaseURL, strategy.Name(), len(s.ChannelExprs))
			}
			return w.Flush()
		},
	}
}
