package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slidecoffee/brew-service/internal/quota"
)

func newPlansCmd(clientFn func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans and their limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				Plans []quota.Plan `json:"plans"`
			}
			if err := clientFn().getJSON(cmd.Context(), "/api/plans", &body); err != nil {
				return fmt.Errorf("list plans: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tNAME\tPRESENTATIONS/MONTH\tSLIDES/MONTH")
			for _, p := range body.Plans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, limit(p.PresentationsPerMonth), limit(p.SlidesPerMonth))
			}
			return tw.Flush()
		},
	}
}

func limit(n int) string {
	if n == quota.Unlimited {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
