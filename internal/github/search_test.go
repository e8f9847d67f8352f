package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCounts_DemuxByAlias(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req gqlRequest) {
		assert.Contains(t, req.Query, "query SearchCounts")
		assert.Equal(t, "org:acme is:pr is:open", req.Variables["s0"])
		// Keys deliberately out of order.
		w.Write([]byte(`{"data":{"q2":{"issueCount":3},"q0":{"issueCount":11},"q1":{"issueCount":0}}}`))
	})

	counts, err := c.SearchCounts(context.Background(), []string{"org:acme is:pr is:open", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{11, 0, 3}, counts)
}

func TestSearchPullRequests_ClosedByAndNonPRNodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req gqlRequest) {
		assert.Equal(t, "org:acme is:pr", req.Variables["q"])
		assert.EqualValues(t, 30, req.Variables["first"])
		w.Write([]byte(`{"data":{"search":{"issueCount":42,"nodes":[
			{},
			{"number":7,"title":"Fix","url":"https://github.com/acme/api/pull/7","state":"CLOSED",
			 "createdAt":"2024-05-01T10:00:00Z","closedAt":"2024-05-02T10:00:00Z",
			 "repository":{"nameWithOwner":"acme/api","owner":{"login":"acme"}},
			 "author":{"login":"alice","name":"Alice"},
			 "reviews":{"nodes":[]},
			 "timelineItems":{"nodes":[{"actor":{"login":"bob","name":"Bob"}}]}}
		]}}}`))
	})

	prs, total, err := c.SearchPullRequests(context.Background(), "org:acme is:pr", 30)
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.Len(t, prs, 1)
	assert.Equal(t, 7, prs[0].Number)
	require.NotNil(t, prs[0].ClosedBy)
	assert.Equal(t, "bob", prs[0].ClosedBy.Login)
	assert.Equal(t, "acme/api", prs[0].Repository.NameWithOwner)
}

func TestSearchCommits_REST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/commits", r.URL.Path)
		assert.Equal(t, "org:acme committer-date:>=2024-04-01", r.URL.Query().Get("q"))
		assert.Equal(t, "committer-date", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Equal(t, "25", r.URL.Query().Get("per_page"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Accept"), "application/vnd.github"))
		w.Write([]byte(`{"total_count":1,"items":[{"sha":"abc123","html_url":"https://github.com/acme/api/commit/abc123",
			"commit":{"message":"Add thing\n\nbody","author":{"name":"Alice","date":"2024-05-01T10:00:00Z"},
			"committer":{"name":"GitHub","date":"2024-05-01T10:05:00Z"}},
			"author":{"login":"alice"},"repository":{"full_name":"acme/api"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("t", Options{BaseURL: srv.URL})
	items, total, err := c.SearchCommits(context.Background(), "org:acme committer-date:>=2024-04-01", 25)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "abc123", items[0].SHA)
	require.NotNil(t, items[0].Author)
	assert.Equal(t, "alice", items[0].Author.Login)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC), items[0].Commit.Committer.Date)
}

func TestSearchCommits_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, _, err := NewClient("t", Options{BaseURL: srv.URL}).SearchCommits(context.Background(), "q", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserContributions_UnknownLoginIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req gqlRequest) {
		assert.Contains(t, req.Query, "fragment UserContrib on User")
		assert.Equal(t, "O_1", req.Variables["orgId"])
		assert.Equal(t, "2024-05-01T00:00:00Z", req.Variables["from"])
		w.Write([]byte(`{"data":{
			"u0":{"login":"alice","name":"Alice","contributionsCollection":{"totalCommitContributions":4}},
			"u1":null},
			"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a User with the login of 'ghost'."}]}`))
	})

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := c.UserContributions(context.Background(), "O_1", []string{"alice", "ghost"}, from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0])
	assert.Equal(t, 4, got[0].Collection.TotalCommitContributions)
	assert.Nil(t, got[1])
}

func TestUserContributions_SequentialBatches(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, req gqlRequest) {
		calls.Add(1)
		data := map[string]any{}
		for k, v := range req.Variables {
			if strings.HasPrefix(k, "l") {
				data["u"+strings.TrimPrefix(k, "l")] = map[string]any{"login": v}
			}
		}
		writeData(w, data)
	})

	logins := []string{"a", "b", "c", "d", "e", "f"}
	got, err := c.UserContributions(context.Background(), "O_1", logins, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	for i, l := range logins {
		assert.Equal(t, l, got[i].Login)
	}
}

func TestMemberContributions_Pages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req gqlRequest) {
		if req.Variables["cursor"] == nil {
			writeData(w, map[string]any{"organization": map[string]any{"membersWithRole": map[string]any{
				"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "m1"},
				"nodes":    []any{map[string]any{"login": "alice"}},
			}}})
			return
		}
		writeData(w, map[string]any{"organization": map[string]any{"membersWithRole": map[string]any{
			"pageInfo": map[string]any{"hasNextPage": false},
			"nodes":    []any{map[string]any{"login": "bob"}},
		}}})
	})

	got, err := c.MemberContributions(context.Background(), "acme", "O_1", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[1].Login)
}
