package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/logger"
)

var (
	prsWindow string
	prsRepos  []string
	prsStates []string
)

var prsCmd = &cobra.Command{
	Use:   "prs <org>",
	Short: "Recent pull requests across repositories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := aggregate.ParseWindow(prsWindow, aggregate.Window7d)
		if err != nil {
			return err
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()

		prs, err := a.svc.PullRequests(cmd.Context(), aggregate.PRRequest{
			Org:    args[0],
			Repos:  prsRepos,
			States: prsStates,
			Window: window,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(map[string]any{"prs": prs})
		}
		return renderTable("Pull requests", pullRequestsTable(prs))
	},
}

func init() {
	prsCmd.Flags().StringVarP(&prsWindow, "window", "w", "", "time window: 24h, 7d or 30d (default 7d)")
	prsCmd.Flags().StringSliceVarP(&prsRepos, "repos", "r", nil, "comma-separated repository names")
	prsCmd.Flags().StringSliceVarP(&prsStates, "states", "s", nil, "open, merged (default open)")
	prsCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	_ = prsCmd.MarkFlagRequired("repos")
	rootCmd.AddCommand(prsCmd)
}
