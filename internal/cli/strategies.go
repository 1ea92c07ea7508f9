package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tutu-network/vitals/internal/infra/strategy"
)

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

var strategiesCmd = &cobra.Command{
	Use:     "strategies",
	Aliases: []string{"strategy"},
	Short:   "List built-in recovery strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		list := strategy.NewRegistry().List()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACTION\tSUCCESS\tEST. TIME\tAPPLIES TO")
		for _, s := range list {
			types := make([]string, len(s.ApplicableTo))
			for i, t := range s.ApplicableTo {
				types[i] = string(t)
			}
			fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n",
				s.ID, s.ActionType, s.SuccessRate*100, s.EstimatedTime, strings.Join(types, ", "))
		}
		return w.Flush()
	},
}
