package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiest/github-dashboard/internal/github"
)

func commitHit(sha, login, repo string, at time.Time) github.CommitSearchItem {
	var c github.CommitSearchItem
	c.SHA = sha
	c.HTMLURL = "https://github.com/" + repo + "/commit/" + sha
	c.Commit.Message = "change " + sha + "\n\nlonger body"
	c.Commit.Author.Name = strings.ToUpper(login)
	c.Commit.Author.Date = at
	c.Commit.Committer.Date = at
	c.Repository.FullName = repo
	if login != "" {
		c.Author = &struct {
			Login string `json:"login"`
		}{Login: login}
	}
	return c
}

// commitFeed serves a fixed, newest-first commit history, honouring the
// requested breadth like the real search does.
func commitFeed(hits []github.CommitSearchItem) *fakeSource {
	return &fakeSource{
		searchCommitsFunc: func(ctx context.Context, query string, perPage int) ([]github.CommitSearchItem, int, error) {
			n := min(perPage, len(hits))
			return hits[:n], len(hits), nil
		},
	}
}

func TestActivity_CommitMapping(t *testing.T) {
	src := commitFeed([]github.CommitSearchItem{
		commitHit("aaa", "alice", "acme/api", testNow.Add(-time.Hour)),
		commitHit("bbb", "", "acme/api", testNow.Add(-2*time.Hour)),
		commitHit("ccc", "bob", "acme/web", testNow.Add(-100*24*time.Hour)),
	})

	page, err := newTestService(src).Activity(context.Background(), ActivityRequest{Org: "acme", Types: []string{"commit"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Nil(t, page.NextCursor)

	it := page.Items[0]
	assert.Equal(t, "commit:aaa", it.ID)
	assert.Equal(t, ActivityCommit, it.Type())
	assert.Equal(t, "alice", it.Actor.Login)
	data, ok := it.Data.(CommitData)
	require.True(t, ok)
	assert.Equal(t, "change aaa", data.Message)
	assert.Equal(t, 1, data.CommitCount)
}

func TestActivity_PRLifecycleItems(t *testing.T) {
	merged := github.ActivityPullRequest{
		Number: 4, Title: "Add cache", URL: "u4", State: "MERGED",
		CreatedAt:  testNow.Add(-5 * time.Hour),
		MergedAt:   ago(time.Hour),
		ClosedAt:   ago(time.Hour),
		Author:     &github.Actor{Login: "alice", Name: "Alice Liddell"},
		MergedBy:   &github.Actor{Login: "merger", Name: "Mia"},
		Repository: github.RepoRef{NameWithOwner: "acme/api"},
	}
	merged.Reviews.Nodes = []github.ReviewNode{
		{DatabaseID: 77, State: "APPROVED", SubmittedAt: ago(2 * time.Hour), Author: &github.Actor{Login: "bob"}},
		{DatabaseID: 78, State: "PENDING", Author: &github.Actor{Login: "bob"}},
		{DatabaseID: 79, State: "COMMENTED", SubmittedAt: ago(3 * time.Hour)},
	}
	closed := github.ActivityPullRequest{
		Number: 5, Title: "Drop", URL: "u5", State: "CLOSED",
		CreatedAt:  testNow.Add(-4 * time.Hour),
		ClosedAt:   ago(30 * time.Minute),
		Author:     &github.Actor{Login: "carol"},
		ClosedBy:   &github.Actor{Login: "dave"},
		Repository: github.RepoRef{NameWithOwner: "acme/web"},
	}
	src := &fakeSource{
		searchPullRequestsFunc: func(ctx context.Context, query string, first int) ([]github.ActivityPullRequest, int, error) {
			assert.Contains(t, query, "org:acme is:pr updated:>=")
			return []github.ActivityPullRequest{merged, closed}, 2, nil
		},
	}

	page, err := newTestService(src).Activity(context.Background(), ActivityRequest{
		Org: "acme", Types: []string{"review", "pr_opened", "pr_closed", "pr_merged"},
	})
	require.NoError(t, err)

	var ids []string
	for _, it := range page.Items {
		ids = append(ids, it.ID)
	}
	mergedAt := ago(time.Hour).UTC().Format(time.RFC3339)
	closedAt := ago(30 * time.Minute).UTC().Format(time.RFC3339)
	assert.Equal(t, []string{
		"closed:acme/web#5:" + closedAt,
		"merge:acme/api#4:" + mergedAt,
		"review:77",
		"opened:acme/web#5",
		"opened:acme/api#4",
	}, ids)

	md, ok := page.Items[1].Data.(PRMergedData)
	require.True(t, ok)
	assert.Equal(t, "alice", page.Items[1].Actor.Login)
	assert.Equal(t, "merger", md.MergedBy.Login)
}

func TestActivity_TypesFilterSkipsUnneededSearches(t *testing.T) {
	src := commitFeed(nil)
	// searchPullRequestsFunc is unset: calling it would fail the request.
	page, err := newTestService(src).Activity(context.Background(), ActivityRequest{Org: "acme", Types: []string{"commit"}})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.NextCursor)
}

func TestActivity_Filters(t *testing.T) {
	pr := github.ActivityPullRequest{
		Number: 1, Title: "T", CreatedAt: testNow.Add(-3 * time.Hour), MergedAt: ago(time.Hour),
		Author:     &github.Actor{Login: "alice", Name: "Alice Liddell"},
		MergedBy:   &github.Actor{Login: "mergebot", Name: "Merge Bot"},
		Repository: github.RepoRef{NameWithOwner: "acme/Payments"},
	}
	pr.Reviews.Nodes = []github.ReviewNode{
		{DatabaseID: 1, State: "APPROVED", SubmittedAt: ago(2 * time.Hour), Author: &github.Actor{Login: "bob", Name: "Bob"}},
	}
	newSrc := func() *fakeSource {
		s := commitFeed([]github.CommitSearchItem{commitHit("c1", "mergebot", "acme/infra", testNow.Add(-30*time.Minute))})
		s.searchPullRequestsFunc = func(ctx context.Context, query string, first int) ([]github.ActivityPullRequest, int, error) {
			return []github.ActivityPullRequest{pr}, 1, nil
		}
		return s
	}

	cases := []struct {
		name string
		req  ActivityRequest
		want []string
	}{
		{"repo substring case-insensitive", ActivityRequest{Repo: "PAY"}, []string{"merge:acme/Payments#1:" + ago(time.Hour).UTC().Format(time.RFC3339), "review:1", "opened:acme/Payments#1"}},
		{"username matches merger on merge events", ActivityRequest{Username: "MERGEBOT"}, []string{"commit:c1", "merge:acme/Payments#1:" + ago(time.Hour).UTC().Format(time.RFC3339)}},
		{"username on reviews is the reviewer only", ActivityRequest{Username: "bob"}, []string{"review:1"}},
		{"fullname checks every name on the item", ActivityRequest{Fullname: "liddell"}, []string{"merge:acme/Payments#1:" + ago(time.Hour).UTC().Format(time.RFC3339), "review:1", "opened:acme/Payments#1"}},
		{"legacy merge type", ActivityRequest{Types: []string{"merge"}}, []string{"merge:acme/Payments#1:" + ago(time.Hour).UTC().Format(time.RFC3339)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Org = "acme"
			page, err := newTestService(newSrc()).Activity(context.Background(), tc.req)
			require.NoError(t, err)
			var ids []string
			for _, it := range page.Items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestActivity_PagesConcatenateWithoutDuplicates(t *testing.T) {
	var hits []github.CommitSearchItem
	for i := 0; i < 57; i++ {
		hits = append(hits, commitHit(fmt.Sprintf("sha%02d", i), "alice", "acme/api", testNow.Add(-time.Duration(i)*time.Hour)))
	}
	svc := newTestService(commitFeed(hits))

	var all []ActivityItem
	cursor := ""
	for pages := 0; pages < 50; pages++ {
		page, err := svc.Activity(context.Background(), ActivityRequest{Org: "acme", Types: []string{"commit"}, Cursor: cursor, PageSize: 10})
		require.NoError(t, err)
		all = append(all, page.Items...)
		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}

	require.Len(t, all, 57)
	assertFeedOrder(t, all)
}

func assertFeedOrder(t *testing.T, all []ActivityItem) {
	t.Helper()
	seen := map[string]bool{}
	for i, it := range all {
		assert.False(t, seen[it.ID], "duplicate %s", it.ID)
		seen[it.ID] = true
		if i > 0 {
			assert.False(t, it.OccurredAt.After(all[i-1].OccurredAt), "item %d out of order", i)
		}
	}
}

func walkActivity(t *testing.T, svc *Service, req ActivityRequest) []ActivityItem {
	t.Helper()
	var all []ActivityItem
	for pages := 0; pages < 50; pages++ {
		page, err := svc.Activity(context.Background(), req)
		require.NoError(t, err)
		all = append(all, page.Items...)
		if page.NextCursor == nil {
			return all
		}
		req.Cursor = *page.NextCursor
	}
	t.Fatal("cursor never ran out")
	return nil
}

// PRs are searched by updatedAt, but a merge can predate a later update.
// Events older than the last updatedAt returned may still belong to PRs
// beyond the search breadth and must not be served yet.
func TestActivity_SaturatedSearchHoldsBackEventsBehindItsHorizon(t *testing.T) {
	prs := make([]github.ActivityPullRequest, 0, 100)
	for i := 1; i <= 100; i++ {
		merged := ago(24*time.Hour + time.Duration(i)*time.Hour)
		if i > 60 {
			merged = ago(2*time.Hour + time.Duration(i-61)*7*time.Minute)
		}
		prs = append(prs, github.ActivityPullRequest{
			Number: i, Title: fmt.Sprintf("PR %d", i), State: "MERGED",
			CreatedAt:  testNow.Add(-30 * 24 * time.Hour),
			UpdatedAt:  testNow.Add(-time.Duration(i) * time.Minute),
			MergedAt:   merged,
			ClosedAt:   merged,
			Author:     &github.Actor{Login: "alice"},
			Repository: github.RepoRef{NameWithOwner: "acme/api"},
		})
	}
	var breadths []int
	src := &fakeSource{
		searchPullRequestsFunc: func(ctx context.Context, query string, first int) ([]github.ActivityPullRequest, int, error) {
			breadths = append(breadths, first)
			return prs[:min(first, len(prs))], len(prs), nil
		},
	}

	all := walkActivity(t, newTestService(src), ActivityRequest{Org: "acme", Types: []string{"pr_merged"}, PageSize: 20})

	require.Len(t, all, 100)
	assert.Equal(t, "merge:acme/api#61:"+ago(2*time.Hour).UTC().Format(time.RFC3339), all[0].ID)
	assertFeedOrder(t, all)
	assert.Equal(t, []int{60, 100}, breadths[:2])
}

func TestActivity_FilteredPageWidensSearchUntilFilled(t *testing.T) {
	var hits []github.CommitSearchItem
	for i := 0; i < 200; i++ {
		login := "bot"
		if i >= 80 {
			login = "alice"
		}
		hits = append(hits, commitHit(fmt.Sprintf("sha%03d", i), login, "acme/api", testNow.Add(-time.Duration(i)*time.Minute)))
	}
	svc := newTestService(commitFeed(hits))

	page, err := svc.Activity(context.Background(), ActivityRequest{Org: "acme", Types: []string{"commit"}, Username: "alice", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 10)
	assert.Equal(t, "commit:sha080", page.Items[0].ID)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "2", *page.NextCursor)

	all := walkActivity(t, svc, ActivityRequest{Org: "acme", Types: []string{"commit"}, Username: "alice", PageSize: 10})
	assert.Len(t, all, 20)
	assertFeedOrder(t, all)
}

func TestActivity_NothingReachableWithinCapEndsFeed(t *testing.T) {
	var hits []github.CommitSearchItem
	for i := 0; i < 200; i++ {
		login := "bot"
		if i >= 150 {
			login = "alice"
		}
		hits = append(hits, commitHit(fmt.Sprintf("sha%03d", i), login, "acme/api", testNow.Add(-time.Duration(i)*time.Minute)))
	}
	svc := newTestService(commitFeed(hits))

	page, err := svc.Activity(context.Background(), ActivityRequest{Org: "acme", Types: []string{"commit"}, Username: "alice", PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.NextCursor)
}

func TestActivity_BeyondDataIsEmptyWithNullCursor(t *testing.T) {
	svc := newTestService(commitFeed([]github.CommitSearchItem{
		commitHit("a", "alice", "acme/api", testNow.Add(-time.Hour)),
	}))
	page, err := svc.Activity(context.Background(), ActivityRequest{Org: "acme", Types: []string{"commit"}, Cursor: "4"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.NextCursor)
}

func TestActivity_Validation(t *testing.T) {
	svc := newTestService(&fakeSource{})
	cases := []ActivityRequest{
		{},
		{Org: "acme", Types: []string{"deploy"}},
		{Org: "acme", Cursor: "zero"},
		{Org: "acme", Cursor: "0"},
		{Org: "acme", PageSize: -1},
	}
	for _, req := range cases {
		_, err := svc.Activity(context.Background(), req)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "%+v", req)
	}
}

func TestSearchBreadth(t *testing.T) {
	assert.Equal(t, 60, searchBreadth(20, 1))
	assert.Equal(t, 60, searchBreadth(20, 2))
	assert.Equal(t, 80, searchBreadth(20, 3))
	assert.Equal(t, 100, searchBreadth(20, 9))
}

func TestActivityItem_JSONCarriesType(t *testing.T) {
	it := ActivityItem{
		ID:         "review:1",
		OccurredAt: testNow,
		Repo:       "acme/api",
		Actor:      ActivityActor{Login: "bob"},
		Data:       ReviewData{State: "APPROVED", PRNumber: 3},
	}
	raw, err := json.Marshal(it)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "review", got["type"])
	assert.Equal(t, "review:1", got["id"])
	assert.Equal(t, "APPROVED", got["data"].(map[string]any)["state"])
}
