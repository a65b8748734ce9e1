package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harlowes/magpie/internal/cli"
	"github.com/harlowes/magpie/internal/model"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <supplier>",
		Short: "Show a supplier's latest run summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			supplier := args[0]

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			summary, err := store.GetLatestRunSummary(ctx, supplier)
			if err != nil {
				return fmt.Errorf("no run summary for %q: %w", supplier, err)
			}

			fmt.Println(cli.FormatTitle("Run summary: " + supplier))
			fmt.Printf("  run id:     %s\n", summary.RunID)
			fmt.Printf("  started:    %s\n", summary.StartedAt.Format(time.RFC3339))
			fmt.Printf("  duration:   %s\n", summary.Duration().Round(time.Second))
			fmt.Printf("  matched:    %s\n", cli.SuccessStyle.Render(fmt.Sprintf("%d", summary.Matched)))
			fmt.Printf("  unmatched:  %s\n", cli.WarningStyle.Render(fmt.Sprintf("%d", summary.Unmatched)))
			fmt.Printf("  skipped:    %d\n", summary.ItemsSkipped)
			fmt.Printf("  sections:   %d crawled, %d failed\n", summary.SectionsCrawled, summary.SectionFailures)

			fmt.Println(cli.SubtleStyle.Render("  decision tiers:"))
			for _, tier := range []model.DecisionTier{
				model.TierPrecision,
				model.TierComprehensive,
				model.TierMinimal,
				model.TierStructural,
			} {
				if n := summary.TierHistogram[tier]; n > 0 {
					fmt.Printf("    %-14s %d\n", tier, n)
				}
			}
			return nil
		},
	}
	return cmd
}
