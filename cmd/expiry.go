package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/vigiapreco/cmed-cli/internal/catalog"
	"github.com/vigiapreco/cmed-cli/internal/expiry"
)

var expiryCmd = &cobra.Command{
	Use:   "expiry <invoices.csv>",
	Short: "Categorize invoice lines by expiry status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("expiry"); err != nil {
			return err
		}

		items, err := catalog.LoadInvoices(args[0])
		if err != nil {
			return err
		}

		counts := expiry.Summarize(items)
		categories := make([]string, 0, len(counts))
		for c := range counts {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)

		cmd.Printf("lines  %d\n", len(items))
		for _, c := range categories {
			cmd.Printf("  %-28s %d\n", c, counts[expiry.Category(c)])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expiryCmd)
}
