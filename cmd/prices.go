package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/vigency"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Consolidate and query price validity intervals",
}

var pricesConsolidateCmd = &cobra.Command{
	Use:   "consolidate <snapshot>...",
	Short: "Consolidate monthly snapshots into validity intervals and store them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("prices"); err != nil {
			return err
		}
		ctx := cmd.Context()

		norm := normalize.NewNormalizer(nil)
		cat, err := loadCatalog(ctx, norm, args)
		if err != nil {
			return err
		}

		intervals := vigency.NewConsolidator().Consolidate(cat.snapshots)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SaveIntervals(ctx, intervals); err != nil {
			return err
		}

		open := 0
		for _, pi := range intervals {
			if pi.Open() {
				open++
			}
		}
		cmd.Printf("intervals  %d (%d open)\n", len(intervals), open)
		return nil
	},
}

var (
	resolveProduct string
	resolveDate    string
)

var pricesResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a product's ceiling price as of a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("prices"); err != nil {
			return err
		}
		ctx := cmd.Context()

		date, err := time.Parse("2006-01-02", resolveDate)
		if err != nil {
			return eris.Wrap(err, "cmed: parse --date")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		intervals, err := st.LoadIntervals(ctx)
		if err != nil {
			return err
		}
		resolver := vigency.NewResolver(intervals)

		rp, ok := resolver.Resolve([]string{resolveProduct}, date)
		if !ok {
			cmd.Printf("no price in force for %s on %s\n", resolveProduct, resolveDate)
			return nil
		}
		cmd.Printf("product  %s\n", rp.ProductID)
		cmd.Printf("price id %s\n", rp.PriceID)
		cmd.Printf("ceiling  %s\n", rp.Ceiling.StringFixed(2))
		cmd.Printf("cap      %v\n", rp.CAP)
		cmd.Printf("icms0    %v\n", rp.ICMS0)
		return nil
	},
}

func init() {
	pricesResolveCmd.Flags().StringVar(&resolveProduct, "product", "", "product ID (registration-GGREM)")
	pricesResolveCmd.Flags().StringVar(&resolveDate, "date", "", "emission date (YYYY-MM-DD)")
	pricesResolveCmd.MarkFlagRequired("product") //nolint:errcheck
	pricesResolveCmd.MarkFlagRequired("date")    //nolint:errcheck

	pricesCmd.AddCommand(pricesConsolidateCmd)
	pricesCmd.AddCommand(pricesResolveCmd)
	rootCmd.AddCommand(pricesCmd)
}
