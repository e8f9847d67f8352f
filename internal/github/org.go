package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// OrgID resolves an organization login to its GraphQL node id. Results are
// memoized for the life of the process: the mapping never changes upstream.
// Two callers racing on a miss both query GitHub and write the same value.
func (c *Client) OrgID(ctx context.Context, org string) (string, error) {
	key := strings.ToLower(org)

	c.orgMu.RLock()
	id, ok := c.orgIDs[key]
	c.orgMu.RUnlock()
	if ok {
		return id, nil
	}

	var data gqlOrgIDResponse
	err := c.Query(ctx, orgIDQuery, map[string]any{"login": org}, &data)
	if err != nil && !isNotFoundOnly(err) {
		return "", err
	}
	if data.Organization == nil || data.Organization.ID == "" {
		return "", &ResolutionError{Kind: "organization", Name: org}
	}

	c.orgMu.Lock()
	c.orgIDs[key] = data.Organization.ID
	c.orgMu.Unlock()

	c.log.Debug("resolved org id", zap.String("org", org), zap.String("id", data.Organization.ID))
	return data.Organization.ID, nil
}

// ListRepos returns every repository of org, most recently updated first.
func (c *Client) ListRepos(ctx context.Context, org string) ([]Repo, error) {
	repos := []Repo{}
	var cursor *string
	for {
		var data gqlOrgReposResponse
		err := c.Query(ctx, orgReposQuery, map[string]any{"login": org, "cursor": cursor}, &data)
		if err != nil && !isNotFoundOnly(err) {
			return nil, err
		}
		if data.Organization == nil {
			return nil, &ResolutionError{Kind: "organization", Name: org}
		}
		page := data.Organization.Repositories
		for _, n := range page.Nodes {
			full := n.NameWithOwner
			if full == "" {
				full = org + "/" + n.Name
			}
			repos = append(repos, Repo{
				Name:        n.Name,
				FullName:    full,
				Description: n.Description,
				IsPrivate:   n.IsPrivate,
				UpdatedAt:   n.UpdatedAt,
				PushedAt:    n.PushedAt,
			})
		}
		if !page.PageInfo.HasNextPage {
			break
		}
		cur := page.PageInfo.EndCursor
		cursor = &cur
	}
	return repos, nil
}

// Members returns every member of org.
func (c *Client) Members(ctx context.Context, org string) ([]Member, error) {
	members := []Member{}
	var cursor *string
	for {
		var data gqlOrgMembersResponse
		err := c.Query(ctx, orgMembersQuery, map[string]any{"login": org, "cursor": cursor}, &data)
		if err != nil && !isNotFoundOnly(err) {
			return nil, err
		}
		if data.Organization == nil {
			return nil, &ResolutionError{Kind: "organization", Name: org}
		}
		page := data.Organization.MembersWithRole
		members = append(members, namedToMembers(page.Nodes)...)
		if !page.PageInfo.HasNextPage {
			break
		}
		cur := page.PageInfo.EndCursor
		cursor = &cur
	}
	return members, nil
}

// Teams returns every team of org with its complete member list. Teams whose
// first member page is full are paged further one at a time.
func (c *Client) Teams(ctx context.Context, org string) ([]Team, error) {
	teams := []Team{}
	var cursor *string
	for {
		var data gqlOrgTeamsResponse
		err := c.Query(ctx, orgTeamsQuery, map[string]any{"login": org, "cursor": cursor}, &data)
		if err != nil && !isNotFoundOnly(err) {
			return nil, err
		}
		if data.Organization == nil {
			return nil, &ResolutionError{Kind: "organization", Name: org}
		}
		page := data.Organization.Teams
		for _, n := range page.Nodes {
			team := Team{Slug: n.Slug, Name: n.Name, Members: namedToMembers(n.Members.Nodes)}
			if n.Members.PageInfo.HasNextPage {
				rest, err := c.teamMembers(ctx, org, n.Slug, n.Members.PageInfo.EndCursor)
				if err != nil {
					return nil, fmt.Errorf("team %s members: %w", n.Slug, err)
				}
				team.Members = append(team.Members, rest...)
			}
			teams = append(teams, team)
		}
		if !page.PageInfo.HasNextPage {
			break
		}
		cur := page.PageInfo.EndCursor
		cursor = &cur
	}
	return teams, nil
}

func (c *Client) teamMembers(ctx context.Context, org, slug, after string) ([]Member, error) {
	members := []Member{}
	cursor := &after
	for {
		var data gqlTeamMembersResponse
		err := c.Query(ctx, teamMembersQuery, map[string]any{"login": org, "slug": slug, "cursor": cursor}, &data)
		if err != nil {
			return nil, err
		}
		if data.Organization == nil || data.Organization.Team == nil {
			return members, nil
		}
		page := data.Organization.Team.Members
		members = append(members, namedToMembers(page.Nodes)...)
		if !page.PageInfo.HasNextPage {
			return members, nil
		}
		cur := page.PageInfo.EndCursor
		cursor = &cur
	}
}

// Viewer returns the token owner and every organization they belong to.
func (c *Client) Viewer(ctx context.Context) (*Viewer, error) {
	var viewer *Viewer
	var cursor *string
	for {
		var data gqlViewerResponse
		if err := c.Query(ctx, viewerQuery, map[string]any{"cursor": cursor}, &data); err != nil {
			return nil, err
		}
		if viewer == nil {
			viewer = &Viewer{Login: data.Viewer.Login, Name: data.Viewer.Name, Organizations: []Organization{}}
		}
		page := data.Viewer.Organizations
		for _, n := range page.Nodes {
			viewer.Organizations = append(viewer.Organizations, Organization{Login: n.Login, Name: n.Name})
		}
		if !page.PageInfo.HasNextPage {
			return viewer, nil
		}
		cur := page.PageInfo.EndCursor
		cursor = &cur
	}
}

// isNotFoundOnly reports whether err is a QueryError made up solely of
// NOT_FOUND entries; the caller then inspects the null fields itself.
func isNotFoundOnly(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.OnlyNotFound()
}
