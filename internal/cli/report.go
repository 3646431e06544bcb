package cli

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

func newReportCmd() *cobra.Command {
	var (
		days    int
		group   string
		topN    int
		hygiene bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print cost rollups for the recent window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if days <= 0 {
				days = a.cfg.LookbackDays
			}
			key, err := groupKeyFor(group)
			if err != nil {
				return err
			}
			w := ledger.LastNDays(time.Now(), days)
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Costs by %s, %s to %s (%s)\n\n", group, w.Start, w.End, a.cfg.BaseCurrency)

			rows, err := a.agg.Grouped(ctx, w, key, analytics.GroupedOptions{})
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{group, "Total Cost"})
			table.SetBorder(false)
			table.SetColumnSeparator(" ")
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			var grand float64
			for _, row := range rows {
				grand += row.TotalCost
				table.Append([]string{row.Key, fmt.Sprintf("%.2f", row.TotalCost)})
			}
			table.SetFooter([]string{"TOTAL", fmt.Sprintf("%.2f", grand)})
			table.SetFooterAlignment(tablewriter.ALIGN_LEFT)
			table.Render()

			if topN > 0 {
				top, err := a.agg.TopServices(ctx, w, topN)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nTop %d services:\n", topN)
				topTable := tablewriter.NewWriter(out)
				topTable.SetHeader([]string{"Service", "Total Cost"})
				topTable.SetBorder(false)
				topTable.SetColumnSeparator(" ")
				for _, row := range top {
					topTable.Append([]string{row.Key, fmt.Sprintf("%.2f", row.TotalCost)})
				}
				topTable.Render()
			}

			if hygiene {
				records, err := a.agg.Records(ctx, w, "")
				if err != nil {
					return err
				}
				coverages := analytics.BuildHygieneByProvider(records, a.cfg.RequiredTagsFor)
				fmt.Fprintln(out, "\nTag hygiene by provider:")
				hygieneTable := tablewriter.NewWriter(out)
				hygieneTable.SetHeader([]string{"Provider", "Total", "Fully Tagged", "Partial", "Untagged"})
				hygieneTable.SetBorder(false)
				hygieneTable.SetColumnSeparator(" ")
				for _, pc := range coverages {
					hygieneTable.Append([]string{
						pc.Provider,
						fmt.Sprintf("%.2f", pc.Coverage.TotalCost),
						fmt.Sprintf("%.2f", pc.Coverage.FullyTaggedCost),
						fmt.Sprintf("%.2f", pc.Coverage.PartiallyTaggedCost),
						fmt.Sprintf("%.2f", pc.Coverage.UntaggedCost),
					})
				}
				hygieneTable.Render()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Window length in days (default: configured lookback)")
	cmd.Flags().StringVar(&group, "group", "provider", "Grouping dimension: provider, service, or account")
	cmd.Flags().IntVar(&topN, "top", 0, "Also list the N most expensive services")
	cmd.Flags().BoolVar(&hygiene, "hygiene", false, "Also print tag hygiene coverage per provider")
	return cmd
}

func groupKeyFor(name string) (analytics.GroupKey, error) {
	switch name {
	case "provider":
		return analytics.GroupByProvider, nil
	case "service":
		return analytics.GroupByService, nil
	case "account":
		return analytics.GroupByAccount, nil
	}
	return "", fmt.Errorf("unknown group %q: expected provider, service, or account", name)
}
