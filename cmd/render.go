package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/mikiest/github-dashboard/internal/aggregate"
)

func renderTable(title string, data pterm.TableData) error {
	pterm.DefaultSection.Println(title)
	if len(data) <= 1 {
		pterm.Info.Println("nothing to show")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func totalsTable(t aggregate.OrgTotals) pterm.TableData {
	return pterm.TableData{
		{"Metric", "Count"},
		{"Open PRs", strconv.Itoa(t.OpenPRs)},
		{"Stale PRs", strconv.Itoa(t.StalePRs)},
		{"PRs opened", strconv.Itoa(t.PRsOpened)},
		{"PRs merged", strconv.Itoa(t.PRsMerged)},
		{"PRs closed (unmerged)", strconv.Itoa(t.PRsClosed)},
		{"Commits", fmt.Sprintf("%d in %d repos", t.Commits, t.CommitRepos)},
		{"Reviews", fmt.Sprintf("%d in %d repos", t.Reviews, t.ReviewRepos)},
	}
}

func topUsersTable(u aggregate.TopUsers) pterm.TableData {
	data := pterm.TableData{{"Board", "#", "User", "Name", "Count"}}
	add := func(board string, list []aggregate.UserCount) {
		for i, e := range list {
			data = append(data, []string{board, strconv.Itoa(i + 1), e.Login, orDash(e.Name), strconv.Itoa(e.Count)})
		}
	}
	add("reviewer", u.Reviewer)
	add("committer", u.Committer)
	add("PR opener", u.PROpener)
	return data
}

func topReposTable(r aggregate.TopRepos) pterm.TableData {
	data := pterm.TableData{{"Board", "#", "Repository", "Count"}}
	add := func(board string, list []aggregate.RepoCount) {
		for i, e := range list {
			data = append(data, []string{board, strconv.Itoa(i + 1), e.NameWithOwner, strconv.Itoa(e.Count)})
		}
	}
	add("reviews", r.Reviews)
	add("commits", r.Commits)
	add("PRs opened", r.PRsOpened)
	return data
}

func reviewersTable(stats []aggregate.ReviewerStat) pterm.TableData {
	data := pterm.TableData{{"User", "Total", "Approved", "Changes", "Commented", "Comments", "Commits", "Last review", "Repos"}}
	for _, st := range stats {
		data = append(data, []string{
			st.User,
			strconv.Itoa(st.Total),
			strconv.Itoa(st.Approvals),
			strconv.Itoa(st.ChangesRequested),
			strconv.Itoa(st.Commented),
			strconv.Itoa(st.Comments),
			strconv.Itoa(st.CommitTotal),
			timeOrDash(st.LastReviewAt),
			strings.Join(st.Repos, ", "),
		})
	}
	return data
}

func pullRequestsTable(prs []aggregate.PullRequest) pterm.TableData {
	data := pterm.TableData{{"PR", "State", "Author", "Title", "Approvals", "Requested", "Updated"}}
	for _, pr := range prs {
		state := pr.State
		if pr.IsDraft {
			state += " (draft)"
		}
		data = append(data, []string{
			pr.ID,
			state,
			pr.Author,
			truncate(pr.Title, 60),
			strconv.Itoa(pr.Approvals),
			strings.Join(pr.RequestedReviewers, ", "),
			timeOrDash(&pr.UpdatedAt),
		})
	}
	return data
}

func activityTable(items []aggregate.ActivityItem) pterm.TableData {
	data := pterm.TableData{{"When", "Type", "Repo", "Actor", "Summary"}}
	for _, it := range items {
		data = append(data, []string{
			timeOrDash(&it.OccurredAt),
			string(it.Type()),
			it.Repo,
			it.Actor.Login,
			truncate(activitySummary(it.Data), 70),
		})
	}
	return data
}

func activitySummary(d aggregate.ActivityData) string {
	switch v := d.(type) {
	case aggregate.CommitData:
		return shortSHA(v.SHA) + " " + v.Message
	case aggregate.ReviewData:
		return fmt.Sprintf("%s #%d %s", strings.ToLower(v.State), v.PRNumber, v.PRTitle)
	case aggregate.PROpenedData:
		return fmt.Sprintf("opened #%d %s", v.PRNumber, v.PRTitle)
	case aggregate.PRClosedData:
		return fmt.Sprintf("closed #%d %s", v.PRNumber, v.PRTitle)
	case aggregate.PRMergedData:
		return fmt.Sprintf("merged #%d %s", v.PRNumber, v.PRTitle)
	}
	return ""
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
