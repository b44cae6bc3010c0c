package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/marketpulse/internal/models"
)

func snapshotCmd(configPath *string) *cobra.Command {
	var (
		reason string
		push   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Score the universe and print the best and worst tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var snap *models.Snapshot
			switch {
			case push && (reason == tagMorning || reason == tagEvening):
				snap, err = a.report(cmd.Context(), reason)
			case push:
				snap = a.snapshot(cmd.Context(), reason)
				if a.telegram != nil {
					err = a.telegram.SendSnapshot(snap)
				}
			default:
				snap = a.snapshot(cmd.Context(), reason)
			}
			if err != nil {
				return err
			}
			if snap == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s report already sent today\n", reason)
				return nil
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "Snapshot reason; morning and evening are sent once per day")
	cmd.Flags().BoolVar(&push, "push", false, "Send the report to Telegram")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full snapshot as JSON")
	return cmd
}

func alertsCmd(configPath *string) *cobra.Command {
	var push bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Check intraday moves of portfolio and watchlist against the alert threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			alerts, err := a.alerts(cmd.Context(), push)
			printAlerts(cmd.OutOrStdout(), alerts)
			return err
		},
	}
	cmd.Flags().BoolVar(&push, "push", false, "Send alerts to Telegram")
	return cmd
}

func learnCmd(configPath *string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Re-estimate score weights from historical correlations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.learn(cmd.Context(), dryRun)
			if result != nil {
				printLearnResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute weights without saving or sending them")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pct(p *float64) string {
	if p == nil {
		return "—"
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

func printSnapshot(w io.Writer, snap *models.Snapshot) {
	fmt.Fprintf(w, "%s  %s  regime %s (%s)\n\n",
		snap.Meta.Timestamp.Format("2006-01-02 15:04"), snap.Meta.Reason,
		snap.Meta.Regime.Label, snap.Meta.Regime.Detail)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, section := range []struct {
		title string
		items []models.TickerSignal
	}{{"TOP", snap.Top}, {"WORST", snap.Worst}} {
		fmt.Fprintf(tw, "%s\tSCORE\t1D\tRS5D\tVOL\tMOVEMENT\tLEVEL\tADVICE\tWHY\n", section.title)
		for _, it := range section.items {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%.2fx\t%s\t%s\t%s\t%s\n",
				it.Ticker, it.Score, pct(it.Pct1D), pct(it.RS5D), it.VolRatio,
				it.Movement, it.Level, it.Advice, it.Why)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush() //nolint:errcheck
}

func printAlerts(w io.Writer, alerts []models.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "no alerts")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tFROM OPEN\tOPEN\tLAST\tMOVEMENT\tLEVEL\tWHY")
	for _, al := range alerts {
		fmt.Fprintf(tw, "%s\t%+.2f%%\t%.2f\t%.2f\t%s\t%s\t%s\n",
			al.Ticker, al.PctFromOpen, al.Open, al.Last, al.Movement, al.Level, al.Why)
	}
	tw.Flush() //nolint:errcheck
}

func printLearnResult(w io.Writer, r *models.LearnResult) {
	fmt.Fprintf(w, "method %s, %d samples, %d failures\n", r.Method, r.Samples, r.Failures)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tBEFORE\tAFTER")
	for _, c := range models.Categories {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\n", c, r.Before[c], r.After[c])
	}
	tw.Flush() //nolint:errcheck
	for _, n := range r.Notes {
		fmt.Fprintf(w, "- %s\n", n)
	}
}
