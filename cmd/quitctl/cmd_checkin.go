package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/workers"
)

func newCheckinCmd(opts *globalOptions) *cobra.Command {
	checkinCmd := &cobra.Command{
		Use:     "checkin",
		Aliases: []string{"c"},
		Short:   "Record and commit daily check-ins",
	}

	var notes string
	setCmd := &cobra.Command{
		Use:   "set [date|today|yesterday] [cigarettes]",
		Short: "Record how many cigarettes were smoked on a day",
		Long:  "Writes a local draft. Nothing is sent to the remote store until \"checkin save\".",
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			date, err := rt.parseDay(args[0])
			if err != nil {
				return err
			}
			actual, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("cigarettes must be a whole number, got %q", args[1])
			}

			record, err := rt.checkins.RecordInput(cmd.Context(), services.CheckinInput{
				UserID: rt.userID,
				Date:   date,
				Actual: actual,
				Notes:  notes,
				Today:  rt.today(),
			})
			if err != nil {
				return err
			}
			return printRecord(cmd, opts, record, nil)
		}),
	}
	setCmd.Flags().StringVarP(&notes, "notes", "n", "", "free-form note for the day")

	var async bool
	saveCmd := &cobra.Command{
		Use:   "save [date|today|yesterday]",
		Short: "Commit a day's draft to the remote store",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			date, err := rt.parseDay(firstArg(args))
			if err != nil {
				return err
			}
			if async {
				return saveInBackground(cmd, opts, rt, date)
			}

			record, err := rt.checkins.Save(cmd.Context(), rt.userID, date)
			if errors.Is(err, domain.ErrRemoteUnavailable) {
				return printRecord(cmd, opts, record, []string{"remote store unavailable: kept as draft, retry later"})
			}
			if err != nil {
				return err
			}
			return printRecord(cmd, opts, record, nil)
		}),
	}
	saveCmd.Flags().BoolVar(&async, "async", false, "queue the save on the background committer")

	showCmd := &cobra.Command{
		Use:   "show [date|today|yesterday]",
		Short: "Show the local record for a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			date, err := rt.parseDay(firstArg(args))
			if err != nil {
				return err
			}
			record, err := rt.checkins.Get(cmd.Context(), rt.userID, date)
			if err != nil {
				return err
			}
			return printRecord(cmd, opts, record, nil)
		}),
	}

	checkinCmd.AddCommand(setCmd, saveCmd, showCmd)
	return checkinCmd
}

// saveInBackground runs the save through the commit worker and waits for it,
// since the process would otherwise exit before the job runs.
func saveInBackground(cmd *cobra.Command, opts *globalOptions, rt *runtime, date domain.CalendarDate) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	done := make(chan error, 1)
	rt.worker.OnResult = func(job workers.CommitJob, err error) {
		done <- err
	}
	rt.worker.Start(ctx)

	record, queued, err := rt.checkins.SaveAsync(ctx, rt.userID, date)
	if err != nil {
		return err
	}
	if !queued {
		if record.IsCommitted() {
			return printRecord(cmd, opts, record, nil)
		}
		return printRecord(cmd, opts, record, []string{"save queue full: kept as draft"})
	}

	var warnings []string
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, domain.ErrRemoteUnavailable) {
			return err
		}
		if err != nil {
			warnings = append(warnings, "remote store unavailable: kept as draft, retry later")
		}
	case <-time.After(rt.cfg.RemoteTimeout + time.Second):
		warnings = append(warnings, "save still pending: kept as draft")
	}

	record, err = rt.checkins.Get(ctx, rt.userID, date)
	if err != nil {
		return err
	}
	return printRecord(cmd, opts, record, warnings)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
