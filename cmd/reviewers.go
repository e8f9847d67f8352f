package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/logger"
)

var (
	reviewersWindow string
	reviewersUsers  []string
	reviewersTeam   string
)

var reviewersCmd = &cobra.Command{
	Use:   "reviewers <org>",
	Short: "Review statistics for a set of users or a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org := args[0]
		window, err := aggregate.ParseWindow(reviewersWindow, aggregate.Window24h)
		if err != nil {
			return err
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()

		users := append([]string(nil), reviewersUsers...)
		if reviewersTeam != "" {
			teams, err := a.gh.Teams(cmd.Context(), org)
			if err != nil {
				return err
			}
			found := false
			for _, t := range teams {
				if strings.EqualFold(t.Slug, reviewersTeam) {
					found = true
					for _, m := range t.Members {
						users = append(users, m.Login)
					}
				}
			}
			if !found {
				return fmt.Errorf("team %q not found in %s", reviewersTeam, org)
			}
		}
		if len(users) == 0 {
			pterm.Warning.Println("no users given; pass --users or --team")
		}

		res, err := a.svc.ReviewerStats(cmd.Context(), aggregate.ReviewerRequest{Org: org, Users: users, Window: window})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}
		return renderTable("Reviewers since "+timeOrDash(&res.Since), reviewersTable(res.Reviewers))
	},
}

func init() {
	reviewersCmd.Flags().StringVarP(&reviewersWindow, "window", "w", "", "time window: 24h, 7d or 30d (default 24h)")
	reviewersCmd.Flags().StringSliceVarP(&reviewersUsers, "users", "u", nil, "comma-separated GitHub logins")
	reviewersCmd.Flags().StringVarP(&reviewersTeam, "team", "t", "", "team slug whose members to include")
	reviewersCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	rootCmd.AddCommand(reviewersCmd)
}
