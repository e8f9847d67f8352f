package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/logger"
)

var activityReq aggregate.ActivityRequest

var activityCmd = &cobra.Command{
	Use:   "activity <org>",
	Short: "One page of the organization activity feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()

		req := activityReq
		req.Org = args[0]
		page, err := a.svc.Activity(cmd.Context(), req)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(page)
		}
		if err := renderTable("Activity", activityTable(page.Items)); err != nil {
			return err
		}
		if page.NextCursor != nil {
			pterm.Info.Printfln("more with --cursor %s", *page.NextCursor)
		}
		return nil
	},
}

func init() {
	f := activityCmd.Flags()
	f.StringSliceVar(&activityReq.Types, "types", nil, "commit, review, pr_opened, pr_closed, pr_merged")
	f.StringVar(&activityReq.Repo, "repo", "", "repository name substring")
	f.StringVar(&activityReq.Username, "username", "", "login substring")
	f.StringVar(&activityReq.Fullname, "fullname", "", "display name substring")
	f.StringVar(&activityReq.Cursor, "cursor", "", "page cursor from a previous call")
	f.IntVar(&activityReq.PageSize, "page-size", aggregate.DefaultActivityPageSize, "items per page (max 100)")
	f.BoolVar(&asJSON, "json", false, "print the raw JSON response")
	rootCmd.AddCommand(activityCmd)
}
