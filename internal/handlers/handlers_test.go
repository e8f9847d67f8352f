package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/github"
)

var errUnexpectedCall = errors.New("unexpected call")

type fakeDirectory struct {
	listReposFunc func(ctx context.Context, org string) ([]github.Repo, error)
	teamsFunc     func(ctx context.Context, org string) ([]github.Team, error)
	membersFunc   func(ctx context.Context, org string) ([]github.Member, error)
	viewerFunc    func(ctx context.Context) (*github.Viewer, error)
}

func (f *fakeDirectory) ListRepos(ctx context.Context, org string) ([]github.Repo, error) {
	if f.listReposFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.listReposFunc(ctx, org)
}

func (f *fakeDirectory) Teams(ctx context.Context, org string) ([]github.Team, error) {
	if f.teamsFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.teamsFunc(ctx, org)
}

func (f *fakeDirectory) Members(ctx context.Context, org string) ([]github.Member, error) {
	if f.membersFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.membersFunc(ctx, org)
}

func (f *fakeDirectory) Viewer(ctx context.Context) (*github.Viewer, error) {
	if f.viewerFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.viewerFunc(ctx)
}

type fakeAggregator struct {
	pullRequestsFunc  func(ctx context.Context, req aggregate.PRRequest) ([]aggregate.PullRequest, error)
	reviewerStatsFunc func(ctx context.Context, req aggregate.ReviewerRequest) (*aggregate.ReviewerStats, error)
	orgStatsFunc      func(ctx context.Context, org string, window aggregate.Window) (*aggregate.OrgStats, error)
	activityFunc      func(ctx context.Context, req aggregate.ActivityRequest) (*aggregate.ActivityPage, error)
}

func (f *fakeAggregator) PullRequests(ctx context.Context, req aggregate.PRRequest) ([]aggregate.PullRequest, error) {
	if f.pullRequestsFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.pullRequestsFunc(ctx, req)
}

func (f *fakeAggregator) ReviewerStats(ctx context.Context, req aggregate.ReviewerRequest) (*aggregate.ReviewerStats, error) {
	if f.reviewerStatsFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.reviewerStatsFunc(ctx, req)
}

func (f *fakeAggregator) OrgStats(ctx context.Context, org string, window aggregate.Window) (*aggregate.OrgStats, error) {
	if f.orgStatsFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.orgStatsFunc(ctx, org, window)
}

func (f *fakeAggregator) Activity(ctx context.Context, req aggregate.ActivityRequest) (*aggregate.ActivityPage, error) {
	if f.activityFunc == nil {
		return nil, errUnexpectedCall
	}
	return f.activityFunc(ctx, req)
}

func newRouter(dir Directory, agg Aggregator) http.Handler {
	r := chi.NewRouter()
	New(dir, agg, zap.NewNop()).Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newRouter(&fakeDirectory{}, &fakeAggregator{}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, body["ok"])
}

func TestDirectoryRoutes(t *testing.T) {
	name := "Alice"
	dir := &fakeDirectory{
		listReposFunc: func(ctx context.Context, org string) ([]github.Repo, error) {
			assert.Equal(t, "acme", org)
			return []github.Repo{{Name: "api", FullName: "acme/api"}}, nil
		},
		teamsFunc: func(ctx context.Context, org string) ([]github.Team, error) {
			return []github.Team{{Slug: "core", Name: "Core", Members: []github.Member{{Login: "alice", Name: &name}}}}, nil
		},
		membersFunc: func(ctx context.Context, org string) ([]github.Member, error) {
			return []github.Member{{Login: "alice"}}, nil
		},
		viewerFunc: func(ctx context.Context) (*github.Viewer, error) {
			return &github.Viewer{Login: "me", Organizations: []github.Organization{{Login: "acme"}}}, nil
		},
	}
	h := newRouter(dir, &fakeAggregator{})

	cases := []struct {
		path string
		key  string
	}{
		{"/api/orgs/acme/repos", "repos"},
		{"/api/orgs/acme/teams", "teams"},
		{"/api/orgs/acme/members", "members"},
		{"/api/viewer", "viewer"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			rec, body := do(t, h, http.MethodGet, tc.path, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, body, tc.key)
		})
	}
}

func TestPullRequests_DefaultsAndValidation(t *testing.T) {
	var got aggregate.PRRequest
	agg := &fakeAggregator{
		pullRequestsFunc: func(ctx context.Context, req aggregate.PRRequest) ([]aggregate.PullRequest, error) {
			got = req
			return []aggregate.PullRequest{{ID: "acme/api#1", Number: 1}}, nil
		},
	}
	h := newRouter(&fakeDirectory{}, agg)

	rec, body := do(t, h, http.MethodPost, "/api/prs", `{"org":"acme","repos":["api"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, aggregate.Window7d, got.Window)
	assert.Equal(t, []string{"api"}, got.Repos)
	assert.Len(t, body["prs"], 1)

	rec, body = do(t, h, http.MethodPost, "/api/prs", `{"org":"acme","repos":["api"],"window":"1y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "window")

	rec, _ = do(t, h, http.MethodPost, "/api/prs", `{"org":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopReviewers_EmptyUsersMakesNoUpstreamCall(t *testing.T) {
	// Any Source call would panic on the nil embedded interface.
	svc := aggregate.NewService(struct{ aggregate.Source }{}, aggregate.Options{}, zap.NewNop())
	h := newRouter(&fakeDirectory{}, svc)

	rec, body := do(t, h, http.MethodPost, "/api/reviewers/top", `{"org":"acme","users":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["reviewers"])
	assert.NotEmpty(t, body["since"])
}

func TestOrgStats_WindowDefaultsTo24h(t *testing.T) {
	agg := &fakeAggregator{
		orgStatsFunc: func(ctx context.Context, org string, window aggregate.Window) (*aggregate.OrgStats, error) {
			assert.Equal(t, "acme", org)
			assert.Equal(t, aggregate.Window24h, window)
			return &aggregate.OrgStats{}, nil
		},
	}
	rec, body := do(t, newRouter(&fakeDirectory{}, agg), http.MethodPost, "/api/orgs/acme/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "stats")
}

func TestActivity_PassesFiltersAndReturnsNullCursor(t *testing.T) {
	agg := &fakeAggregator{
		activityFunc: func(ctx context.Context, req aggregate.ActivityRequest) (*aggregate.ActivityPage, error) {
			assert.Equal(t, "acme", req.Org)
			assert.Equal(t, []string{"commit"}, req.Types)
			assert.Equal(t, "2", req.Cursor)
			assert.Equal(t, 10, req.PageSize)
			return &aggregate.ActivityPage{Items: []aggregate.ActivityItem{}}, nil
		},
	}
	rec, body := do(t, newRouter(&fakeDirectory{}, agg), http.MethodPost, "/api/orgs/acme/activity",
		`{"types":["commit"],"cursor":"2","pageSize":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["items"])
	v, ok := body["nextCursor"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &aggregate.ValidationError{Field: "org", Message: "is required"}, http.StatusBadRequest},
		{"unresolvable repo", &github.ResolutionError{Kind: "repository", Name: "acme/ghost"}, http.StatusBadRequest},
		{"graphql", &github.QueryError{Errors: []github.GraphQLError{{Message: "boom"}}}, http.StatusInternalServerError},
		{"graphql not found", fmt.Errorf("member contributions: %w", &github.QueryError{Errors: []github.GraphQLError{{Type: "NOT_FOUND", Message: "Could not resolve to a User"}}}), http.StatusBadRequest},
		{"graphql invalid", &github.QueryError{Errors: []github.GraphQLError{{Type: "INVALID", Message: "bad search"}}}, http.StatusBadRequest},
		{"graphql mixed", &github.QueryError{Errors: []github.GraphQLError{{Type: "NOT_FOUND"}, {Type: "INTERNAL", Message: "oops"}}}, http.StatusInternalServerError},
		{"other", errors.New("network down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := &fakeAggregator{
				orgStatsFunc: func(ctx context.Context, org string, window aggregate.Window) (*aggregate.OrgStats, error) {
					return nil, tc.err
				},
			}
			rec, body := do(t, newRouter(&fakeDirectory{}, agg), http.MethodPost, "/api/orgs/acme/stats", `{}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "retryAfterMs")
		})
	}
}

func TestErrorMapping_RateLimit(t *testing.T) {
	agg := &fakeAggregator{
		reviewerStatsFunc: func(ctx context.Context, req aggregate.ReviewerRequest) (*aggregate.ReviewerStats, error) {
			return nil, &github.RateLimitError{RetryAfter: 1500 * time.Millisecond}
		},
	}
	rec, body := do(t, newRouter(&fakeDirectory{}, agg), http.MethodPost, "/api/reviewers/top", `{"org":"acme","users":["alice"]}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, float64(1500), body["retryAfterMs"])
	assert.Contains(t, body["error"], "rate limit")
}
