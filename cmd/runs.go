package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/report"
	"github.com/vigiapreco/cmed-cli/internal/store"
)

var (
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded match runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		for _, r := range runs {
			matched := 0
			total := 0
			if r.Stats != nil {
				matched = r.Stats.Matched
				total = r.Stats.Total
			}
			cmd.Printf("%s  %-8s  %s  %d/%d matched\n",
				r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04"), matched, total)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Dump a run's matched and unresolved items as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		matched, err := st.ListMatched(ctx, run.ID)
		if err != nil {
			return err
		}
		unresolved, err := st.ListUnresolved(ctx, run.ID)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(map[string]any{
			"run":        run,
			"matched":    matched,
			"unresolved": unresolved,
		}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

var reportHours int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate run counters over a lookback window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := report.NewCollector(st).Collect(ctx, reportHours)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, complete, failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "lookback window in hours")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(reportCmd)
}
