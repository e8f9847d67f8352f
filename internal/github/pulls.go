package github

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxPRPage = 100

// PullRequests fetches recent pull requests for every repo of owner. Repos
// are grouped into batches of c.batchSize, one aliased query per batch, with
// at most c.prConcurrency batches in flight. The result has one entry per
// input repo, in input order. Any batch error fails the whole call.
func (c *Client) PullRequests(ctx context.Context, owner string, repos []string, q PRQuery) ([]RepoPullRequests, error) {
	if q.PerRepo <= 0 || q.PerRepo > maxPRPage {
		q.PerRepo = maxPRPage
	}
	out := make([]RepoPullRequests, len(repos))
	batches := chunk(repos, c.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.prConcurrency)
	for bi, batch := range batches {
		batch := batch
		offset := bi * c.batchSize
		g.Go(func() error {
			results, err := c.pullRequestBatch(gctx, owner, batch, q)
			if err != nil {
				return err
			}
			copy(out[offset:], results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) pullRequestBatch(ctx context.Context, owner string, repos []string, q PRQuery) ([]RepoPullRequests, error) {
	doc := buildPRBatch(owner, repos, q)
	data := make(map[string]*gqlRepoPRs, len(repos))
	err := c.Query(ctx, doc.String()+prConnFragment, doc.vars, &data)
	if err != nil && !isNotFoundOnly(err) {
		return nil, err
	}

	results := make([]RepoPullRequests, len(repos))
	for i, alias := range doc.aliases {
		node := data[alias]
		if node == nil {
			return nil, &ResolutionError{Kind: "repository", Name: owner + "/" + repos[i]}
		}
		slug := node.NameWithOwner
		if slug == "" {
			slug = owner + "/" + repos[i]
		}
		prs := node.PullRequests.Nodes
		if needsMorePages(node, q.UpdatedSince) {
			rest, err := c.pullRequestPages(ctx, owner, repos[i], q, node.PullRequests.PageInfo.EndCursor)
			if err != nil {
				return nil, fmt.Errorf("paging %s: %w", slug, err)
			}
			c.log.Debug("repo exceeded first PR page",
				zap.String("repo", slug), zap.Int("first_page", len(prs)), zap.Int("extra", len(rest)))
			prs = append(prs, rest...)
		}
		results[i] = RepoPullRequests{Repo: slug, PullRequests: prs}
	}
	return results, nil
}

// pullRequestPages keeps following one repo's cursor until GitHub runs out
// of pages or the oldest PR on a page falls before q.UpdatedSince.
func (c *Client) pullRequestPages(ctx context.Context, owner, name string, q PRQuery, after string) ([]PullRequestNode, error) {
	var prs []PullRequestNode
	cursor := after
	for {
		var data struct {
			Repository *gqlRepoPRs `json:"repository"`
		}
		vars := map[string]any{
			"owner":  owner,
			"name":   name,
			"first":  q.PerRepo,
			"states": q.States,
			"cursor": cursor,
		}
		if err := c.Query(ctx, repoPRPageQuery, vars, &data); err != nil {
			return nil, err
		}
		if data.Repository == nil {
			return prs, nil
		}
		prs = append(prs, data.Repository.PullRequests.Nodes...)
		if !needsMorePages(data.Repository, q.UpdatedSince) {
			return prs, nil
		}
		cursor = data.Repository.PullRequests.PageInfo.EndCursor
	}
}

// needsMorePages reports whether a page ordered by updatedAt desc may have
// in-window PRs beyond it. A zero since disables paging past the first page.
func needsMorePages(node *gqlRepoPRs, since time.Time) bool {
	conn := node.PullRequests
	if since.IsZero() || !conn.PageInfo.HasNextPage || len(conn.Nodes) == 0 {
		return false
	}
	oldest := conn.Nodes[len(conn.Nodes)-1].UpdatedAt
	return !oldest.Before(since)
}
