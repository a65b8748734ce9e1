package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/harlowes/magpie/internal/cli"
	"github.com/harlowes/magpie/internal/config"
	"github.com/harlowes/magpie/internal/sheets"
)

func exportCmd() *cobra.Command {
	var (
		supplier string
		since    string
		outPath  string
		toSheets bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accumulated report rows as CSV or to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var from time.Time
			if since != "" {
				parsed, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date %q: %w", since, err)
				}
				from = parsed
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			rows, err := store.GetReportRows(ctx, supplier, from)
			if err != nil {
				return fmt.Errorf("failed to load report rows: %w", err)
			}
			if len(rows) == 0 {
				fmt.Println(cli.FormatInfo("No report rows to export."))
				return nil
			}

			if toSheets {
				sheetsCfg, err := config.LoadSheetsConfig()
				if err != nil {
					return fmt.Errorf("failed to load sheets config: %w", err)
				}
				writer, err := sheets.NewWriter(ctx, sheetsCfg, slog.Default())
				if err != nil {
					return fmt.Errorf("failed to create sheets writer: %w", err)
				}
				if err := writer.Write(ctx, rows); err != nil {
					return fmt.Errorf("failed to export to sheets: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d rows to Google Sheets.", len(rows))))
				return nil
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath) // #nosec G304 -- path comes from user flag
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			w := csv.NewWriter(out)
			header := []string{"recorded_at", "supplier", "source_id", "title", "source_price", "marketplace_id", "listing_price", "method", "confidence"}
			if err := w.Write(header); err != nil {
				return fmt.Errorf("failed to write csv: %w", err)
			}
			for _, r := range rows {
				record := []string{
					r.RecordedAt.Format(time.RFC3339),
					r.Supplier,
					r.SourceID,
					r.Title,
					strconv.FormatFloat(r.SourcePrice, 'f', 2, 64),
					r.MarketplaceID,
					strconv.FormatFloat(r.ListingPrice, 'f', 2, 64),
					string(r.Method),
					strconv.FormatFloat(r.Confidence, 'f', 2, 64),
				}
				if err := w.Write(record); err != nil {
					return fmt.Errorf("failed to write csv: %w", err)
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("failed to flush csv: %w", err)
			}

			if outPath != "" {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d rows to %s.", len(rows), outPath)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&supplier, "supplier", "", "only export this supplier's rows")
	cmd.Flags().StringVar(&since, "since", "", "only export rows recorded on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&toSheets, "sheets", false, "publish to Google Sheets instead of CSV")
	return cmd
}
