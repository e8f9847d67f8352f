package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/github"
)

// commentCollapseWindow merges COMMENTED reviews on the same PR that land
// this close together; GitHub exposes no revision link between them.
const commentCollapseWindow = 5 * time.Minute

type ReviewerRequest struct {
	Org    string
	Users  []string
	Window Window
}

// ReviewerStat is one user's review and commit activity inside a window.
type ReviewerStat struct {
	User             string     `json:"user"`
	DisplayName      *string    `json:"displayName,omitempty"`
	Total            int        `json:"total"`
	Approvals        int        `json:"approvals"`
	ChangesRequested int        `json:"changesRequested"`
	Comments         int        `json:"comments"`
	Commented        int        `json:"commented"`
	LastReviewAt     *time.Time `json:"lastReviewAt"`
	Repos            []string   `json:"repos"`
	CommitTotal      int        `json:"commitTotal"`
	CommitRepos      []string   `json:"commitRepos"`
}

type ReviewerStats struct {
	Since     time.Time      `json:"since"`
	Reviewers []ReviewerStat `json:"reviewers"`
}

// ReviewerStats computes per-user review statistics for req.Users. An empty
// user list short-circuits without touching GitHub.
func (s *Service) ReviewerStats(ctx context.Context, req ReviewerRequest) (*ReviewerStats, error) {
	if strings.TrimSpace(req.Org) == "" {
		return nil, invalid("org", "is required")
	}
	window := req.Window
	if window == "" {
		window = Window24h
	}
	now := s.now()
	since := window.Since(now)
	out := &ReviewerStats{Since: since, Reviewers: []ReviewerStat{}}

	logins := dedupeLogins(req.Users)
	if len(logins) == 0 {
		return out, nil
	}

	orgID, err := s.src.OrgID(ctx, req.Org)
	if err != nil {
		return nil, err
	}
	contribs, err := s.src.UserContributions(ctx, orgID, logins, since, now)
	if err != nil {
		return nil, fmt.Errorf("fetching user contributions: %w", err)
	}

	seen := make(map[int64]struct{})
	for i, login := range logins {
		var uc *github.UserContributions
		if i < len(contribs) {
			uc = contribs[i]
		}
		if uc == nil {
			s.log.Debug("reviewer not resolvable", zap.String("login", login))
			out.Reviewers = append(out.Reviewers, emptyStat(login))
			continue
		}
		out.Reviewers = append(out.Reviewers, reviewerStat(login, uc, since, seen))
	}
	sortReviewerStats(out.Reviewers)
	return out, nil
}

// dedupeLogins drops blanks and case-insensitive duplicates, keeping the
// casing of the first occurrence.
func dedupeLogins(users []string) []string {
	seen := make(map[string]struct{}, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		key := strings.ToLower(u)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

func emptyStat(login string) ReviewerStat {
	return ReviewerStat{User: login, Repos: []string{}, CommitRepos: []string{}}
}

type timedReview struct {
	at  time.Time
	pr  string
	rev *github.ContributedReview
	ev  github.ReviewContribution
}

func reviewerStat(requested string, uc *github.UserContributions, since time.Time, seen map[int64]struct{}) ReviewerStat {
	login := uc.Login
	if login == "" {
		login = requested
	}
	st := emptyStat(login)
	if uc.Name != "" {
		name := uc.Name
		st.DisplayName = &name
	}

	var reviews []timedReview
	for _, ev := range uc.Collection.PullRequestReviewContributions.Nodes {
		rev := ev.PullRequestReview
		if rev == nil {
			continue
		}
		if rev.DatabaseID != 0 {
			if _, dup := seen[rev.DatabaseID]; dup {
				continue
			}
			seen[rev.DatabaseID] = struct{}{}
		}
		at := reviewTime(rev.SubmittedAt, rev.UpdatedAt)
		if at == nil {
			at = ev.OccurredAt
		}
		if at == nil || at.Before(since) {
			continue
		}
		key := fmt.Sprintf("%s#%d", ev.Repository.NameWithOwner, ev.PullRequest.Number)
		reviews = append(reviews, timedReview{at: *at, pr: key, rev: rev, ev: ev})
	}
	// Oldest first so the collapse window always compares against the
	// previous comment on the PR.
	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].at.Before(reviews[j].at) })

	lastComment := make(map[string]time.Time)
	repos := make(map[string]struct{})
	for _, r := range reviews {
		switch r.rev.State {
		case "APPROVED":
			st.Approvals++
		case "CHANGES_REQUESTED":
			st.ChangesRequested++
		case "COMMENTED":
			prev, ok := lastComment[r.pr]
			if !ok || r.at.Sub(prev) > commentCollapseWindow {
				st.Commented++
			}
			if !ok || r.at.After(prev) {
				lastComment[r.pr] = r.at
			}
		}
		st.Comments += r.rev.Comments.TotalCount
		if slug := r.ev.Repository.NameWithOwner; slug != "" {
			repos[slug] = struct{}{}
		}
		at := r.at
		st.LastReviewAt = laterOf(st.LastReviewAt, &at)
	}
	st.Repos = sortedKeys(repos)
	st.Total = st.Approvals + st.ChangesRequested + st.Commented

	commitRepos := make(map[string]struct{})
	perRepo := 0
	for _, rc := range uc.Collection.CommitContributionsByRepository {
		if rc.Contributions.TotalCount <= 0 {
			continue
		}
		perRepo += rc.Contributions.TotalCount
		commitRepos[rc.Repository.NameWithOwner] = struct{}{}
	}
	if perRepo > 0 {
		st.CommitTotal = perRepo
		st.CommitRepos = sortedKeys(commitRepos)
	} else {
		st.CommitTotal = uc.Collection.TotalCommitContributions
	}
	return st
}

// sortReviewerStats orders by total desc, then lastReviewAt desc with nil
// last. Equal entries keep input order.
func sortReviewerStats(stats []ReviewerStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		switch {
		case a.LastReviewAt == nil:
			return false
		case b.LastReviewAt == nil:
			return true
		default:
			return a.LastReviewAt.After(*b.LastReviewAt)
		}
	})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
