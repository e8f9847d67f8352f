package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/github"
)

// Source is the slice of the GitHub gateway the aggregations read from.
// *github.Client satisfies it.
type Source interface {
	OrgID(ctx context.Context, org string) (string, error)
	PullRequests(ctx context.Context, owner string, repos []string, q github.PRQuery) ([]github.RepoPullRequests, error)
	UserContributions(ctx context.Context, orgID string, logins []string, from, to time.Time) ([]*github.UserContributions, error)
	MemberContributions(ctx context.Context, org, orgID string, from, to time.Time) ([]github.UserContributions, error)
	SearchCounts(ctx context.Context, queries []string) ([]int, error)
	SearchPullRequests(ctx context.Context, query string, first int) ([]github.ActivityPullRequest, int, error)
	SearchCommits(ctx context.Context, query string, perPage int) ([]github.CommitSearchItem, int, error)
}

const (
	DefaultPRLimitPerRepo     = 50
	DefaultStaleDays          = 14
	DefaultTopN               = 3
	DefaultActivityMaxAgeDays = 90
)

type Options struct {
	PRLimitPerRepo     int
	StaleDays          int
	TopN               int
	ActivityMaxAgeDays int
}

// Service computes every dashboard aggregate from scratch on each call.
type Service struct {
	src  Source
	opts Options
	now  func() time.Time
	log  *zap.Logger
}

func NewService(src Source, opts Options, log *zap.Logger) *Service {
	if opts.PRLimitPerRepo <= 0 {
		opts.PRLimitPerRepo = DefaultPRLimitPerRepo
	}
	if opts.StaleDays <= 0 {
		opts.StaleDays = DefaultStaleDays
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.ActivityMaxAgeDays <= 0 {
		opts.ActivityMaxAgeDays = DefaultActivityMaxAgeDays
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{src: src, opts: opts, now: time.Now, log: log}
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func laterOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
