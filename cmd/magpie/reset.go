package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harlowes/magpie/internal/cli"
)

func resetCmd() *cobra.Command {
	var (
		force       bool
		keepLinks   bool
		keepHistory bool
	)

	cmd := &cobra.Command{
		Use:   "reset <supplier>",
		Short: "Reset a supplier's stored state",
		Long: `Reset removes a supplier's stored state so the next run starts from scratch.

By default this deletes its linking records, discovery history (including the
decision log), and run cursors. Use --keep-links or --keep-history to limit
the reset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			supplier := args[0]

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			if !force {
				fmt.Printf("This will reset stored state for %q", supplier)
				if !keepLinks {
					fmt.Print(", including its linking records")
				}
				fmt.Print(".\nAre you sure you want to continue? [y/N]: ")

				reader := bufio.NewReader(os.Stdin)
				response, _ := reader.ReadString('\n')
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println(cli.FormatInfo("Reset canceled."))
					return nil
				}
			}

			if !keepLinks {
				deleted, err := store.DeleteLinkingRecords(ctx, supplier)
				if err != nil {
					return fmt.Errorf("failed to delete linking records: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted %d linking records.", deleted)))
			}
			if !keepHistory {
				if err := store.ResetDiscoveryHistory(ctx, supplier); err != nil {
					return fmt.Errorf("failed to reset discovery history: %w", err)
				}
				fmt.Println(cli.FormatSuccess("Discovery history cleared."))
			}
			if err := store.ResetRunCursor(ctx, supplier); err != nil {
				return fmt.Errorf("failed to reset run cursors: %w", err)
			}
			fmt.Println(cli.FormatSuccess("Run cursors cleared."))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&keepLinks, "keep-links", false, "Keep linking records (only reset discovery state)")
	cmd.Flags().BoolVar(&keepHistory, "keep-history", false, "Keep discovery history and decision log")
	return cmd
}
