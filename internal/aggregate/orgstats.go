package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikiest/github-dashboard/internal/github"
)

type OrgStats struct {
	Since       time.Time `json:"since"`
	StaleBefore time.Time `json:"staleBefore"`
	Totals      OrgTotals `json:"totals"`
	TopUsers    TopUsers  `json:"topUsers"`
	TopRepos    TopRepos  `json:"topRepos"`
}

type OrgTotals struct {
	OpenPRs     int `json:"openPRs"`
	StalePRs    int `json:"stalePRs"`
	PRsOpened   int `json:"prsOpened"`
	PRsMerged   int `json:"prsMerged"`
	PRsClosed   int `json:"prsClosed"`
	Commits     int `json:"commits"`
	CommitRepos int `json:"commitRepos"`
	Reviews     int `json:"reviews"`
	ReviewRepos int `json:"reviewRepos"`
}

type UserCount struct {
	Login string  `json:"login"`
	Name  *string `json:"name,omitempty"`
	Count int     `json:"count"`
}

type RepoCount struct {
	NameWithOwner string `json:"nameWithOwner"`
	Count         int    `json:"count"`
}

type TopUsers struct {
	Reviewer  []UserCount `json:"reviewer"`
	Committer []UserCount `json:"committer"`
	PROpener  []UserCount `json:"prOpener"`
}

type TopRepos struct {
	Reviews   []RepoCount `json:"reviews"`
	Commits   []RepoCount `json:"commits"`
	PRsOpened []RepoCount `json:"prsOpened"`
}

// OrgStats computes organization totals from count-only searches and the
// leaderboards from a walk over every member's contributions. Both run
// concurrently; either failing fails the call.
func (s *Service) OrgStats(ctx context.Context, org string, window Window) (*OrgStats, error) {
	if strings.TrimSpace(org) == "" {
		return nil, invalid("org", "is required")
	}
	if window == "" {
		window = Window24h
	}
	now := s.now()
	stats := &OrgStats{
		Since:       window.Since(now),
		StaleBefore: now.Add(-days(s.opts.StaleDays)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.src.SearchCounts(gctx, countQueries(org, stats.Since, stats.StaleBefore))
		if err != nil {
			return fmt.Errorf("org search counts: %w", err)
		}
		if len(counts) != 5 {
			return fmt.Errorf("org search counts: expected 5 results, got %d", len(counts))
		}
		stats.Totals.OpenPRs = counts[0]
		stats.Totals.StalePRs = counts[1]
		stats.Totals.PRsOpened = counts[2]
		stats.Totals.PRsMerged = counts[3]
		stats.Totals.PRsClosed = counts[4]
		return nil
	})

	var board *leaderboard
	g.Go(func() error {
		orgID, err := s.src.OrgID(gctx, org)
		if err != nil {
			return err
		}
		members, err := s.src.MemberContributions(gctx, org, orgID, stats.Since, now)
		if err != nil {
			return fmt.Errorf("member contributions: %w", err)
		}
		board = newLeaderboard(org)
		for _, m := range members {
			board.add(m)
		}
		s.log.Debug("walked org members", zap.String("org", org), zap.Int("members", len(members)))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := s.opts.TopN
	stats.Totals.Commits = board.commits
	stats.Totals.Reviews = board.reviews
	stats.Totals.CommitRepos = board.repoCommits.positive()
	stats.Totals.ReviewRepos = board.repoReviews.positive()
	stats.TopUsers = TopUsers{
		Reviewer:  board.reviewer.top(n),
		Committer: board.committer.top(n),
		PROpener:  board.prOpener.top(n),
	}
	stats.TopRepos = TopRepos{
		Reviews:   board.repoReviews.top(n),
		Commits:   board.repoCommits.top(n),
		PRsOpened: board.repoPRs.top(n),
	}
	return stats, nil
}

// countQueries returns, in order: open, stale, opened, merged and
// closed-unmerged PR searches.
func countQueries(org string, since, staleBefore time.Time) []string {
	base := "org:" + org + " is:pr"
	s := since.UTC().Format(time.RFC3339)
	return []string{
		base + " is:open",
		base + " is:open updated:<" + staleBefore.UTC().Format(time.RFC3339),
		base + " created:>=" + s,
		base + " is:merged merged:>=" + s,
		base + " is:closed is:unmerged closed:>=" + s,
	}
}

// ── Leaderboards ──────────────────────────────────────────────────────────────

type leaderboard struct {
	org       string
	commits   int
	reviews   int
	reviewer  *userBoard
	committer *userBoard
	prOpener  *userBoard

	repoCommits *repoBoard
	repoReviews *repoBoard
	repoPRs     *repoBoard

	seen map[string]bool
}

func newLeaderboard(org string) *leaderboard {
	return &leaderboard{
		org:         org,
		reviewer:    newUserBoard(),
		committer:   newUserBoard(),
		prOpener:    newUserBoard(),
		repoCommits: newRepoBoard(),
		repoReviews: newRepoBoard(),
		repoPRs:     newRepoBoard(),
		seen:        make(map[string]bool),
	}
}

// add counts a member once; the members connection can repeat a login
// across pages.
func (l *leaderboard) add(m github.UserContributions) {
	key := strings.ToLower(m.Login)
	if l.seen[key] {
		return
	}
	l.seen[key] = true

	c := m.Collection
	l.commits += c.TotalCommitContributions
	l.reviews += c.TotalPullRequestReviewContributions

	var name *string
	if m.Name != "" {
		n := m.Name
		name = &n
	}
	l.reviewer.offer(m.Login, name, c.TotalPullRequestReviewContributions)
	l.committer.offer(m.Login, name, c.TotalCommitContributions)
	l.prOpener.offer(m.Login, name, c.TotalPullRequestContributions)

	l.addRepos(l.repoCommits, c.CommitContributionsByRepository)
	l.addRepos(l.repoReviews, c.PullRequestReviewContributionsByRepository)
	l.addRepos(l.repoPRs, c.PullRequestContributionsByRepository)
}

// addRepos only counts repositories owned by the organization; contribution
// collections occasionally report repos outside it.
func (l *leaderboard) addRepos(b *repoBoard, repos []github.RepoContributions) {
	for _, rc := range repos {
		if !strings.EqualFold(rc.Repository.Owner.Login, l.org) {
			continue
		}
		b.add(rc.Repository.NameWithOwner, rc.Contributions.TotalCount)
	}
}

type userBoard struct {
	order   []string
	entries map[string]*UserCount
}

func newUserBoard() *userBoard {
	return &userBoard{entries: make(map[string]*UserCount)}
}

// offer records count for login, replacing an existing entry only when the
// new count is strictly greater.
func (b *userBoard) offer(login string, name *string, count int) {
	if login == "" {
		return
	}
	if e, ok := b.entries[login]; ok {
		if count > e.Count {
			e.Count = count
			e.Name = name
		}
		return
	}
	b.order = append(b.order, login)
	b.entries[login] = &UserCount{Login: login, Name: name, Count: count}
}

func (b *userBoard) top(n int) []UserCount {
	out := []UserCount{}
	for _, login := range b.order {
		if e := b.entries[login]; e.Count > 0 {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// repoBoard accumulates counts per repository, matching names
// case-insensitively and reporting the first-seen spelling.
type repoBoard struct {
	order  []string
	names  map[string]string
	counts map[string]int
}

func newRepoBoard() *repoBoard {
	return &repoBoard{names: make(map[string]string), counts: make(map[string]int)}
}

func (b *repoBoard) add(repo string, count int) {
	if repo == "" {
		return
	}
	key := strings.ToLower(repo)
	if _, ok := b.counts[key]; !ok {
		b.order = append(b.order, key)
		b.names[key] = repo
	}
	b.counts[key] += count
}

func (b *repoBoard) positive() int {
	n := 0
	for _, c := range b.counts {
		if c > 0 {
			n++
		}
	}
	return n
}

func (b *repoBoard) top(n int) []RepoCount {
	out := []RepoCount{}
	for _, key := range b.order {
		if c := b.counts[key]; c > 0 {
			out = append(out, RepoCount{NameWithOwner: b.names[key], Count: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
