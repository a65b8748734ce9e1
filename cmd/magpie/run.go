package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harlowes/magpie/internal/cli"
	"github.com/harlowes/magpie/internal/config"
	"github.com/harlowes/magpie/internal/discover"
	"github.com/harlowes/magpie/internal/engine"
	"github.com/harlowes/magpie/internal/fetch"
	"github.com/harlowes/magpie/internal/harvest"
	"github.com/harlowes/magpie/internal/marketplace"
	"github.com/harlowes/magpie/internal/match"
	"github.com/harlowes/magpie/internal/suggest"
)

func runCmd() *cobra.Command {
	var (
		suppliersPath string
		runID         string
		onlySupplier  string
		flushEvery    int
		maxCycles     int
		maxItems      int
		noAI          bool
		noProgress    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl suppliers and link discounted items to marketplace listings",
		Long: `Run discovers promising catalog sections for each configured supplier,
harvests their items, and matches each one against the marketplace.

Interrupting a run is safe: position is saved continuously, and re-running
with the same --run-id resumes where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			suppliers, err := loadSuppliers(suppliersPath)
			if err != nil {
				return err
			}
			if onlySupplier != "" {
				filtered := suppliers[:0]
				for _, s := range suppliers {
					if s.Name == onlySupplier {
						filtered = append(filtered, s)
					}
				}
				suppliers = filtered
			}
			if len(suppliers) == 0 {
				return fmt.Errorf("no suppliers configured")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			fetcher := fetch.NewHTTPFetcher(fetch.Config{
				UserAgent: viper.GetString("fetch.user_agent"),
				Timeout:   viper.GetDuration("fetch.timeout"),
			})

			var suggestClient suggest.Client
			if !noAI {
				sCfg := config.LoadSuggestConfig()
				if sCfg.APIKey == "" {
					slog.Warn("No suggestion API key configured, using structural discovery only")
				} else {
					suggestClient, err = suggest.NewClient(sCfg)
					if err != nil {
						return fmt.Errorf("failed to create suggestion client: %w", err)
					}
				}
			}

			decider := discover.New(suggestClient, fetcher, discover.Config{
				StaleAfter:     viper.GetDuration("discover.stale_after"),
				SuggestTimeout: viper.GetDuration("discover.suggest_timeout"),
				MaxSections:    viper.GetInt("discover.max_sections"),
			})

			mkt, err := marketplace.NewHTTPClient(config.LoadMarketplaceConfig())
			if err != nil {
				return fmt.Errorf("failed to create marketplace client: %w", err)
			}
			matcher := match.New(mkt, match.Config{
				ConfidenceThreshold: viper.GetFloat64("match.confidence_threshold"),
				LayerTimeout:        viper.GetDuration("match.layer_timeout"),
			})

			if runID == "" {
				// A date-based default means same-day reruns resume.
				runID = time.Now().Format("2006-01-02")
			}

			handler := cli.NewInterruptHandler(os.Stdout)
			ctx = handler.HandleInterrupts(ctx, true)

			var progress *cli.ProgressReporter
			engineCfg := engine.Config{
				RunID:      runID,
				FlushEvery: flushEvery,
				MaxCycles:  maxCycles,
				MaxItems:   maxItems,
			}
			if !noProgress {
				progress = cli.NewProgressReporter(os.Stdout)
				engineCfg.Observer = progress
			}

			eng := engine.New(store, decider, matcher, func(cfg harvest.SupplierConfig) engine.ItemHarvester {
				return harvest.New(fetcher, cfg)
			}, engineCfg)

			fmt.Println(cli.FormatTitle("Starting extraction run"))
			fmt.Println(cli.SubtleStyle.Render("run id: " + runID))

			runErr := eng.Run(ctx, suppliers)
			if progress != nil {
				progress.Finish()
				total, matched := progress.Counts()
				fmt.Println(cli.FormatInfo(fmt.Sprintf("Processed %d items, %d matched", total, matched)))
			}

			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}

			printRunSummaries(store, suppliers)
			return nil
		},
	}

	cmd.Flags().StringVar(&suppliersPath, "suppliers", "", "suppliers file (default: $HOME/.config/magpie/suppliers.yaml)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier for resuming (default: today's date)")
	cmd.Flags().StringVar(&onlySupplier, "supplier", "", "only run this supplier")
	cmd.Flags().IntVar(&flushEvery, "flush-every", 0, "report rows per durable flush")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "decision cycles per supplier")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "stop a supplier after this many items (0 = unlimited)")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip AI discovery tiers, use structural scraping only")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress spinner")

	return cmd
}

// printRunSummaries shows the latest per-supplier summary after a run.
func printRunSummaries(store summaryStore, suppliers []harvest.SupplierConfig) {
	ctx := context.Background()
	for _, s := range suppliers {
		summary, err := store.GetLatestRunSummary(ctx, s.Name)
		if err != nil {
			slog.Warn("No run summary available", "supplier", s.Name, "error", err)
			continue
		}
		fmt.Println()
		fmt.Println(cli.BoldStyle.Render(s.Name))
		fmt.Printf("  %s matched, %s unmatched, %d skipped\n",
			cli.SuccessStyle.Render(fmt.Sprintf("%d", summary.Matched)),
			cli.WarningStyle.Render(fmt.Sprintf("%d", summary.Unmatched)),
			summary.ItemsSkipped)
		fmt.Printf("  %d sections crawled, %d failed, took %s\n",
			summary.SectionsCrawled, summary.SectionFailures,
			summary.Duration().Round(time.Second))
	}
}
