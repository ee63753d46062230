package main

import (
	"github.com/spf13/cobra"

	"github.com/vigiapreco/cmed-cli/internal/normalize"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <snapshot>...",
	Short: "Inspect CMED snapshot files",
	Long:  "Loads one or more monthly CMED snapshot files, builds the canonical product set, and prints what a match run would see.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}

		norm := normalize.NewNormalizer(nil)
		cat, err := loadCatalog(cmd.Context(), norm, args)
		if err != nil {
			return err
		}

		withNumerics := 0
		withEAN := 0
		for _, p := range cat.products {
			if p.EAN1 != "" {
				withEAN++
			}
			if p.Quantities.HasNumeric() {
				withNumerics++
			}
		}

		cmd.Printf("catalog hash   %s\n", cat.hash)
		cmd.Printf("snapshot rows  %d\n", len(cat.snapshots))
		cmd.Printf("products       %d\n", len(cat.products))
		cmd.Printf("with EAN       %d\n", withEAN)
		cmd.Printf("with numerics  %d\n", withNumerics)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
