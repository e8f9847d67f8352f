package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/logger"
)

var statsWindow string

var statsCmd = &cobra.Command{
	Use:   "stats <org>",
	Short: "Organization totals and leaderboards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := aggregate.ParseWindow(statsWindow, aggregate.Window24h)
		if err != nil {
			return err
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()

		if asJSON {
			stats, err := a.svc.OrgStats(cmd.Context(), args[0], window)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"stats": stats})
		}

		spinner, _ := pterm.DefaultSpinner.Start("Walking " + args[0] + " members...")
		stats, err := a.svc.OrgStats(cmd.Context(), args[0], window)
		if err != nil {
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success("Done")

		if err := renderTable("Totals since "+timeOrDash(&stats.Since), totalsTable(stats.Totals)); err != nil {
			return err
		}
		if err := renderTable("Top users", topUsersTable(stats.TopUsers)); err != nil {
			return err
		}
		return renderTable("Top repositories", topReposTable(stats.TopRepos))
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsWindow, "window", "w", "", "time window: 24h, 7d or 30d (default 24h)")
	statsCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	rootCmd.AddCommand(statsCmd)
}
