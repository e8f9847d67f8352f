package github

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// UserContributions fetches the contribution collection of each login,
// scoped to orgID and [from, to]. Batches run one after another. The result
// is index-aligned with logins; a login GitHub cannot resolve yields nil.
func (c *Client) UserContributions(ctx context.Context, orgID string, logins []string, from, to time.Time) ([]*UserContributions, error) {
	out := make([]*UserContributions, len(logins))
	for bi, batch := range chunk(logins, c.batchSize) {
		doc := buildUserBatch(batch)
		doc.vars["orgId"] = orgID
		doc.vars["from"] = isoTime(from)
		doc.vars["to"] = isoTime(to)

		data := make(map[string]*UserContributions, len(batch))
		err := c.Query(ctx, doc.String()+userContribFragment, doc.vars, &data)
		if err != nil && !isNotFoundOnly(err) {
			return nil, err
		}
		offset := bi * c.batchSize
		for i, alias := range doc.aliases {
			out[offset+i] = data[alias]
			if data[alias] == nil {
				c.log.Debug("user not resolvable", zap.String("login", batch[i]))
			}
		}
	}
	return out, nil
}

// MemberContributions walks every member of org with their contribution
// collection for [from, to], 25 members per page.
func (c *Client) MemberContributions(ctx context.Context, org, orgID string, from, to time.Time) ([]UserContributions, error) {
	members := []UserContributions{}
	var cursor *string
	for {
		vars := map[string]any{
			"login":  org,
			"orgId":  orgID,
			"from":   isoTime(from),
			"to":     isoTime(to),
			"cursor": cursor,
		}
		var data gqlMemberContributionsResponse
		err := c.Query(ctx, memberContributionsQuery, vars, &data)
		if err != nil && !isNotFoundOnly(err) {
			return nil, err
		}
		if data.Organization == nil {
			return nil, &ResolutionError{Kind: "organization", Name: org}
		}
		page := data.Organization.MembersWithRole
		members = append(members, page.Nodes...)
		if !page.PageInfo.HasNextPage {
			return members, nil
		}
		cur := page.PageInfo.EndCursor
		cursor = &cur
	}
}
