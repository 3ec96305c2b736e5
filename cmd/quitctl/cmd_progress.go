package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cumulative statistics and health milestones",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			day, err := rt.parseDay(asOf)
			if err != nil {
				return err
			}
			if today := rt.today(); day.After(today) {
				day = today
			}
			res, err := rt.progress.GetStatistics(cmd.Context(), rt.userID, day)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printStats(cmd, res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "last day to include (default today)")
	return cmd
}

func newSeriesCmd(opts *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Show the reconciled day-by-day series",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			input := services.SeriesInput{UserID: rt.userID, Today: rt.today()}
			var err error
			if from != "" {
				if input.From, err = rt.parseDay(from); err != nil {
					return err
				}
			}
			if to != "" {
				if input.To, err = rt.parseDay(to); err != nil {
					return err
				}
			}

			res, err := rt.progress.GetReconciledSeries(cmd.Context(), input)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSeries(cmd, res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (default plan start)")
	cmd.Flags().StringVar(&to, "to", "", "last day (default today)")
	return cmd
}

func printStats(cmd *cobra.Command, res *services.StatsResult) {
	out := cmd.OutOrStdout()
	printWarnings(cmd, res.Warnings)

	s := res.Statistics
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Days tracked:\t%d\n", s.DaysTracked)
	fmt.Fprintf(w, "Cigarettes smoked:\t%d\n", s.CigarettesSmoked)
	fmt.Fprintf(w, "Cigarettes avoided:\t%d\n", s.CigarettesAvoided)
	fmt.Fprintf(w, "Average per day:\t%.1f\n", s.AverageDaily)
	fmt.Fprintf(w, "Money saved:\t%.0f %s\n", s.MoneySaved, s.Currency)
	fmt.Fprintf(w, "Current streak:\t%d\n", s.CurrentStreak)
	fmt.Fprintf(w, "Longest streak:\t%d\n", s.LongestStreak)
	w.Flush()

	if len(s.HealthMilestones) == 0 {
		return
	}
	fmt.Fprintln(out, "\nMilestones:")
	for _, m := range s.HealthMilestones {
		mark := " "
		if m.Achieved {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] day %d: %s\n", mark, m.ThresholdDays, m.Label)
	}
}

func printSeries(cmd *cobra.Command, res *services.SeriesResult) {
	printWarnings(cmd, res.Warnings)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTARGET\tACTUAL\tSAVED\tSOURCE")
	for _, d := range res.Days {
		actual := "-"
		if d.Actual != nil {
			actual = fmt.Sprint(*d.Actual)
		}
		source := string(d.Source)
		if d.PendingDraft {
			source += " (draft pending)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", d.Date, d.Target, actual, d.Saved, source)
	}
	w.Flush()
}

func printRecord(cmd *cobra.Command, opts *globalOptions, r *domain.CheckinRecord, warnings []string) error {
	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), struct {
			Record   *domain.CheckinRecord `json:"record"`
			Warnings []string              `json:"warnings"`
		}{r, nonNil(warnings)})
	}

	printWarnings(cmd, warnings)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d (%s)\n", r.Date, r.ActualCigarettes, r.TargetCigarettes, r.State)
	if r.Notes != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", r.Notes)
	}
	return nil
}
