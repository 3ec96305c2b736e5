package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/planfile"
)

func newPlanCmd(opts *globalOptions) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage the quit plan",
	}

	importCmd := &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Create or replace the plan from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			doc, err := planfile.Load(args[0])
			if err != nil {
				return err
			}

			plan, err := rt.plans.Save(cmd.Context(), services.SavePlanInput{
				UserID:                 rt.userID,
				StartDate:              doc.StartDate,
				InitialDailyCigarettes: doc.InitialDailyCigarettes,
				PackPrice:              doc.PackPrice,
				Currency:               doc.Currency,
				Phases:                 doc.Phases,
				Today:                  rt.today(),
			})
			if err != nil {
				return err
			}

			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan saved: starts %s, %d phases (version %d)\n",
				plan.StartDate, len(plan.Phases), plan.Version)
			return nil
		}),
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the plan as YAML",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			plan, err := rt.plans.GetActive(cmd.Context(), rt.userID)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			return planfile.Encode(cmd.OutOrStdout(), plan)
		}),
	}

	planCmd.AddCommand(importCmd, showCmd)
	return planCmd
}
