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

// PRRequest selects the pull requests to aggregate.
type PRRequest struct {
	Org    string
	Repos  []string
	States []string // "open", "merged"; empty means open only
	Window Window
}

// PullRequest is a flattened, enriched pull request.
type PullRequest struct {
	ID                 string     `json:"id"`
	Number             int        `json:"number"`
	Repo               string     `json:"repo"`
	Title              string     `json:"title"`
	URL                string     `json:"url"`
	Author             string     `json:"author"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	IsDraft            bool       `json:"isDraft"`
	BaseRefName        string     `json:"baseRefName"`
	HeadRefName        string     `json:"headRefName"`
	RequestedReviewers []string   `json:"requestedReviewers"`
	Approvals          int        `json:"approvals"`
	Additions          *int       `json:"additions,omitempty"`
	Deletions          *int       `json:"deletions,omitempty"`
	ChangedFiles       *int       `json:"changedFiles,omitempty"`
	LastReviewedAt     *time.Time `json:"lastReviewedAt"`
	State              string     `json:"state"`
	MergedAt           *time.Time `json:"mergedAt"`
	ClosedAt           *time.Time `json:"closedAt"`
}

const (
	StateOpen   = "open"
	StateMerged = "merged"
)

var graphQLStates = map[string]string{
	StateOpen:   "OPEN",
	StateMerged: "MERGED",
}

// PullRequests fetches and enriches the recent pull requests of req.Repos.
// Every batch must succeed; the output is sorted by updatedAt desc, then id.
func (s *Service) PullRequests(ctx context.Context, req PRRequest) ([]PullRequest, error) {
	if strings.TrimSpace(req.Org) == "" {
		return nil, invalid("org", "is required")
	}
	if len(req.Repos) == 0 {
		return nil, invalid("repos", "at least one repository is required")
	}
	for _, r := range req.Repos {
		if strings.TrimSpace(r) == "" {
			return nil, invalid("repos", "repository names must be non-empty")
		}
	}
	states := req.States
	if len(states) == 0 {
		states = []string{StateOpen}
	}
	wantMerged := false
	gqlStates := make([]string, 0, len(states))
	for _, st := range states {
		g, ok := graphQLStates[st]
		if !ok {
			return nil, invalid("states", "unknown state %q", st)
		}
		if st == StateMerged {
			wantMerged = true
		}
		gqlStates = append(gqlStates, g)
	}
	window := req.Window
	if window == "" {
		window = Window7d
	}

	since := window.Since(s.now())
	results, err := s.src.PullRequests(ctx, req.Org, req.Repos, github.PRQuery{
		States:       gqlStates,
		PerRepo:      s.opts.PRLimitPerRepo,
		UpdatedSince: since,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching pull requests: %w", err)
	}

	prs := []PullRequest{}
	fetched := 0
	for _, repo := range results {
		for _, node := range repo.PullRequests {
			fetched++
			pr := enrichPR(repo.Repo, node)
			if keepInWindow(pr, since, wantMerged) {
				prs = append(prs, pr)
			}
		}
	}
	sortPullRequests(prs)

	s.log.Debug("aggregated pull requests",
		zap.String("org", req.Org), zap.Int("repos", len(req.Repos)),
		zap.Int("fetched", fetched), zap.Int("kept", len(prs)))
	return prs, nil
}

func enrichPR(repo string, n github.PullRequestNode) PullRequest {
	author := "unknown"
	if n.Author != nil && n.Author.Login != "" {
		author = n.Author.Login
	}
	pr := PullRequest{
		ID:                 fmt.Sprintf("%s#%d", repo, n.Number),
		Number:             n.Number,
		Repo:               repo,
		Title:              n.Title,
		URL:                n.URL,
		Author:             author,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
		IsDraft:            n.IsDraft,
		BaseRefName:        n.BaseRefName,
		HeadRefName:        n.HeadRefName,
		RequestedReviewers: requestedReviewers(n.ReviewRequests.Nodes),
		Additions:          n.Additions,
		Deletions:          n.Deletions,
		ChangedFiles:       n.ChangedFiles,
		MergedAt:           n.MergedAt,
		ClosedAt:           n.ClosedAt,
		State:              StateOpen,
	}
	if n.MergedAt != nil {
		pr.State = StateMerged
	}
	for _, r := range n.Reviews.Nodes {
		if r.State == "APPROVED" {
			pr.Approvals++
		}
		pr.LastReviewedAt = laterOf(pr.LastReviewedAt, reviewTime(r.SubmittedAt, r.UpdatedAt))
	}
	return pr
}

func reviewTime(submitted, updated *time.Time) *time.Time {
	if submitted != nil {
		return submitted
	}
	return updated
}

// requestedReviewers maps review requests to user logins or team:<slug>
// markers, dropping requests whose reviewer is no longer resolvable.
func requestedReviewers(nodes []github.ReviewRequestNode) []string {
	out := []string{}
	for _, n := range nodes {
		rr := n.RequestedReviewer
		if rr == nil {
			continue
		}
		switch {
		case rr.Typename == "Team" && rr.Slug != "":
			out = append(out, "team:"+rr.Slug)
		case rr.Login != "":
			out = append(out, rr.Login)
		}
	}
	return out
}

func keepInWindow(pr PullRequest, since time.Time, wantMerged bool) bool {
	if !pr.UpdatedAt.Before(since) {
		return true
	}
	return wantMerged && pr.MergedAt != nil && !pr.MergedAt.Before(since)
}

func sortPullRequests(prs []PullRequest) {
	sort.SliceStable(prs, func(i, j int) bool {
		if !prs[i].UpdatedAt.Equal(prs[j].UpdatedAt) {
			return prs[i].UpdatedAt.After(prs[j].UpdatedAt)
		}
		return prs[i].ID < prs[j].ID
	})
}
