package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectCmd() *cobra.Command {
	var (
		providerList []string
		skipRates    bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.orch.RunOnce(ctx, providerList)
			for _, src := range run.Sources {
				line := fmt.Sprintf("%-8s %-8s records=%d rejected=%d", src.Provider, src.State, src.RecordsIngested, src.RecordsRejected)
				if src.Error != "" {
					line += " error=" + src.Error
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if err != nil {
				return fmt.Errorf("collection run %s failed: %w", run.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d records ingested, %d rejected\n",
				run.ID, run.RecordsIngested, run.RecordsRejected)

			if skipRates {
				return nil
			}
			rates, err := a.ecb.FetchRates(ctx, a.cfg.FxLookbackDays)
			if err != nil {
				a.logger.Warn("FX rate refresh failed", "error", err)
				return nil
			}
			if err := a.store.UpsertRates(ctx, rates); err != nil {
				return fmt.Errorf("failed to persist FX rates: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d FX rates\n", len(rates))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&providerList, "providers", nil, "Providers to collect from (default: all enabled)")
	cmd.Flags().BoolVar(&skipRates, "skip-rates", false, "Skip the FX rate refresh after collection")
	return cmd
}
