package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harlowes/magpie/internal/cli"
)

func suppliersCmd() *cobra.Command {
	var suppliersPath string

	cmd := &cobra.Command{
		Use:   "suppliers",
		Short: "List configured suppliers",
		RunE: func(_ *cobra.Command, _ []string) error {
			suppliers, err := loadSuppliers(suppliersPath)
			if err != nil {
				return err
			}
			if len(suppliers) == 0 {
				fmt.Println(cli.FormatInfo("No suppliers configured."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Configured suppliers"))
			fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-20s %-40s %s", "NAME", "ENTRY URL", "CURRENCY")))
			for _, s := range suppliers {
				currency := s.Currency
				if currency == "" {
					currency = "-"
				}
				fmt.Println(cli.TableCellStyle.Render(fmt.Sprintf("%-20s %-40s %s", s.Name, s.EntryURL, currency)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&suppliersPath, "suppliers", "", "suppliers file (default: $HOME/.config/magpie/suppliers.yaml)")
	return cmd
}
