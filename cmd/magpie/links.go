package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harlowes/magpie/internal/cli"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/service"
)

func linksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Inspect stored item-to-listing links",
	}
	cmd.AddCommand(linksListCmd())
	cmd.AddCommand(linksStatsCmd())
	return cmd
}

func linksListCmd() *cobra.Command {
	var (
		supplier string
		method   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List linking records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			records, err := store.GetLinkingRecords(ctx, service.LinkFilter{
				Supplier: supplier,
				Method:   model.MatchMethod(method),
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("failed to load linking records: %w", err)
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatInfo("No linking records found."))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-30s %-16s %-18s %-10s %s", "SOURCE ID", "MARKETPLACE", "METHOD", "CONFIDENCE", "SUPPLIER")))
			for _, r := range records {
				fmt.Println(cli.TableCellStyle.Render(
					fmt.Sprintf("%-30s %-16s %-18s %-10.2f %s", r.SourceID, r.MarketplaceID, r.Method, r.Confidence, r.Supplier)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&supplier, "supplier", "", "filter by supplier")
	cmd.Flags().StringVar(&method, "method", "", "filter by match method (code_exact, title_similarity, brand_model)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}

func linksStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show linking record counts per match method",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			counts, err := store.CountLinkingRecordsByMethod(ctx)
			if err != nil {
				return fmt.Errorf("failed to count linking records: %w", err)
			}

			fmt.Println(cli.FormatTitle("Link methods " + cli.ChartIcon))
			total := 0
			for _, method := range []model.MatchMethod{
				model.MethodCodeExact,
				model.MethodTitleSimilarity,
				model.MethodBrandModel,
			} {
				fmt.Printf("  %-18s %d\n", method, counts[method])
				total += counts[method]
			}
			fmt.Println(cli.BoldStyle.Render(fmt.Sprintf("  %-18s %d", "total", total)))
			return nil
		},
	}
}
