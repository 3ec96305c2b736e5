package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "quitctl",
		Short: "Track a smoking cessation plan from the terminal",
		Long: `quitctl records daily cigarette counts against a week-by-week quit plan.

Check-ins are written to a local store first and committed to the remote
database with "checkin save". Progress and statistics merge both tiers and
fall back to local data when the remote is unreachable.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "TOML config file (defaults to $KANSO_CONFIG)")
	flags.StringVarP(&opts.userID, "user", "u", defaultUser(), "user the plan and check-ins belong to")
	flags.StringVar(&opts.driver, "driver", "", "local store driver: sqlite or badger")
	flags.StringVar(&opts.path, "path", "", "local store file (sqlite) or directory (badger)")
	flags.StringVar(&opts.timezone, "tz", "", "IANA timezone deciding what \"today\" is")
	flags.BoolVar(&opts.offline, "offline", false, "never contact the remote database")
	flags.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		newPlanCmd(opts),
		newCheckinCmd(opts),
		newStatsCmd(opts),
		newSeriesCmd(opts),
	)
	return root
}

// withRuntime opens the stores for one command and closes them afterwards.
func withRuntime(opts *globalOptions, fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(opts)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, rt, args)
	}
}
