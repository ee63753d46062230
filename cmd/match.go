package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vigiapreco/cmed-cli/internal/catalog"
	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/vigency"
)

var matchCatalogFiles []string

var matchCmd = &cobra.Command{
	Use:   "match <invoices.csv>",
	Short: "Match invoice line items against the catalog and resolve prices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		ctx := cmd.Context()

		norm := normalize.NewNormalizer(nil)
		cat, err := loadCatalog(ctx, norm, matchCatalogFiles)
		if err != nil {
			return err
		}
		cascade, _, err := buildCascade(norm, cat.products)
		if err != nil {
			return err
		}

		items, err := catalog.LoadInvoices(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.CreateRun(ctx, cat.hash)
		if err != nil {
			return err
		}

		stats, err := cascade.Run(ctx, items)
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID); failErr != nil {
				zap.L().Error("mark run failed", zap.Error(failErr))
			}
			return err
		}

		// Consolidate the loaded snapshots and resolve each matched
		// line against its emission date.
		intervals := vigency.NewConsolidator().Consolidate(cat.snapshots)
		if err := st.SaveIntervals(ctx, intervals); err != nil {
			return err
		}
		resolver := vigency.NewResolver(intervals)

		var matched []model.MatchedItem
		var unresolved []*model.InvoiceLineItem
		for _, li := range items {
			switch {
			case li.Provenance == model.ProvenanceFiltered:
			case !li.Resolved():
				unresolved = append(unresolved, li)
			case li.EmissionDate.IsZero():
				stats.PriceNotFound++
				matched = append(matched, model.MatchedItem{Line: li})
			default:
				mi := model.MatchedItem{Line: li}
				if rp, ok := resolver.Resolve(li.Candidates, li.EmissionDate); ok {
					stats.PriceResolved++
					mi.Price = &rp
				} else {
					stats.PriceNotFound++
				}
				matched = append(matched, mi)
			}
		}

		if err := st.SaveMatched(ctx, run.ID, matched); err != nil {
			return err
		}
		if err := st.SaveUnresolved(ctx, run.ID, unresolved); err != nil {
			return err
		}
		if err := st.CompleteRun(ctx, run.ID, stats); err != nil {
			return err
		}

		cmd.Printf("run %s complete\n", run.ID)
		cmd.Printf("  total       %d\n", stats.Total)
		cmd.Printf("  matched     %d\n", stats.Matched)
		cmd.Printf("  filtered    %d\n", stats.Filtered)
		cmd.Printf("  unresolved  %d\n", stats.Unresolved)
		cmd.Printf("  price ok    %d\n", stats.PriceResolved)
		cmd.Printf("  price miss  %d\n", stats.PriceNotFound)
		for stage, n := range stats.ByStage {
			cmd.Printf("  via %-20s %d\n", stage, n)
		}
		return nil
	},
}

func init() {
	matchCmd.Flags().StringSliceVar(&matchCatalogFiles, "catalog", nil, "CMED snapshot files (xlsx, csv, or zip)")
	matchCmd.MarkFlagRequired("catalog") //nolint:errcheck
	rootCmd.AddCommand(matchCmd)
}
