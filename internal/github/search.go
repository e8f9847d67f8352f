package github

import (
	"context"
	"fmt"
	"net/url"
)

// SearchCounts runs every query as a count-only issue search in a single
// request and returns the issueCount of each, index-aligned with queries.
func (c *Client) SearchCounts(ctx context.Context, queries []string) ([]int, error) {
	if len(queries) == 0 {
		return []int{}, nil
	}
	doc := buildCountBatch(queries)
	data := make(map[string]*gqlSearchCount, len(queries))
	if err := c.Query(ctx, doc.String(), doc.vars, &data); err != nil {
		return nil, err
	}
	counts := make([]int, len(queries))
	for i, alias := range doc.aliases {
		if n := data[alias]; n != nil {
			counts[i] = n.IssueCount
		}
	}
	return counts, nil
}

// SearchPullRequests returns up to first pull requests matching query, with
// the actor of the latest close event copied into ClosedBy. The second
// return value is the total number of hits GitHub reports.
func (c *Client) SearchPullRequests(ctx context.Context, query string, first int) ([]ActivityPullRequest, int, error) {
	var data gqlActivitySearchResponse
	if err := c.Query(ctx, activityPRSearchQuery, map[string]any{"q": query, "first": first}, &data); err != nil {
		return nil, 0, err
	}
	prs := make([]ActivityPullRequest, 0, len(data.Search.Nodes))
	for _, n := range data.Search.Nodes {
		// Issues matched by the search come back as empty objects.
		if n.Number == 0 {
			continue
		}
		pr := n.ActivityPullRequest
		if items := n.TimelineItems.Nodes; len(items) > 0 {
			pr.ClosedBy = items[len(items)-1].Actor
		}
		prs = append(prs, pr)
	}
	return prs, data.Search.IssueCount, nil
}

// SearchCommits queries the REST commit search, newest commits first.
func (c *Client) SearchCommits(ctx context.Context, query string, perPage int) ([]CommitSearchItem, int, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "committer-date")
	params.Set("order", "desc")
	params.Set("per_page", fmt.Sprint(perPage))

	var resp struct {
		TotalCount int                `json:"total_count"`
		Items      []CommitSearchItem `json:"items"`
	}
	if err := c.get(ctx, "/search/commits?"+params.Encode(), &resp); err != nil {
		return nil, 0, err
	}
	if resp.Items == nil {
		resp.Items = []CommitSearchItem{}
	}
	return resp.Items, resp.TotalCount, nil
}
