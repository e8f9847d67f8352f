package github

import "time"

// ── Public projections (served as JSON by the handlers) ──────────────────────

type Repo struct {
	Name        string     `json:"name"`
	FullName    string     `json:"fullName"`
	Description *string    `json:"description"`
	IsPrivate   bool       `json:"isPrivate"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	PushedAt    *time.Time `json:"pushedAt"`
}

type Member struct {
	Login string  `json:"login"`
	Name  *string `json:"name,omitempty"`
}

type Team struct {
	Slug    string   `json:"slug"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

type Organization struct {
	Login string  `json:"login"`
	Name  *string `json:"name,omitempty"`
}

// Viewer is the authenticated actor behind the token.
type Viewer struct {
	Login         string         `json:"login"`
	Name          *string        `json:"name,omitempty"`
	Organizations []Organization `json:"organizations"`
}

// ── Raw nodes handed to the aggregation layer ────────────────────────────────

// Actor is any GitHub actor; Name is only populated for users.
type Actor struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// PRQuery selects which pull requests PullRequests fetches per repository.
type PRQuery struct {
	States       []string  // GraphQL PullRequestState values: OPEN, MERGED
	PerRepo      int       // first page size per repository (max 100)
	UpdatedSince time.Time // keep paging a full repo page while its oldest PR is newer than this
}

// RepoPullRequests is one repository's slice of a batched PR query.
type RepoPullRequests struct {
	Repo         string // owner/name as GitHub reports it
	PullRequests []PullRequestNode
}

type PullRequestNode struct {
	Number         int               `json:"number"`
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	IsDraft        bool              `json:"isDraft"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	MergedAt       *time.Time        `json:"mergedAt"`
	ClosedAt       *time.Time        `json:"closedAt"`
	BaseRefName    string            `json:"baseRefName"`
	HeadRefName    string            `json:"headRefName"`
	Additions      *int              `json:"additions"`
	Deletions      *int              `json:"deletions"`
	ChangedFiles   *int              `json:"changedFiles"`
	Author         *Actor            `json:"author"`
	ReviewRequests reviewRequestConn `json:"reviewRequests"`
	Reviews        reviewConn        `json:"reviews"`
}

type reviewRequestConn struct {
	Nodes []ReviewRequestNode `json:"nodes"`
}

type reviewConn struct {
	Nodes []ReviewNode `json:"nodes"`
}

type ReviewRequestNode struct {
	RequestedReviewer *RequestedReviewer `json:"requestedReviewer"`
}

// RequestedReviewer is a User, Team or Mannequin; Login or Slug is set
// depending on Typename.
type RequestedReviewer struct {
	Typename string `json:"__typename"`
	Login    string `json:"login"`
	Slug     string `json:"slug"`
}

type ReviewNode struct {
	DatabaseID  int64      `json:"databaseId"`
	State       string     `json:"state"`
	SubmittedAt *time.Time `json:"submittedAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	Author      *Actor     `json:"author"`
}

// UserContributions is a user's contributionsCollection scoped to one org and
// window. Used both for explicit logins and for the org member walk.
type UserContributions struct {
	Login      string                  `json:"login"`
	Name       string                  `json:"name"`
	Collection ContributionsCollection `json:"contributionsCollection"`
}

type ContributionsCollection struct {
	TotalCommitContributions                   int                    `json:"totalCommitContributions"`
	TotalPullRequestContributions              int                    `json:"totalPullRequestContributions"`
	TotalPullRequestReviewContributions        int                    `json:"totalPullRequestReviewContributions"`
	CommitContributionsByRepository            []RepoContributions    `json:"commitContributionsByRepository"`
	PullRequestContributionsByRepository       []RepoContributions    `json:"pullRequestContributionsByRepository"`
	PullRequestReviewContributionsByRepository []RepoContributions    `json:"pullRequestReviewContributionsByRepository"`
	PullRequestReviewContributions             reviewContributionConn `json:"pullRequestReviewContributions"`
}

type reviewContributionConn struct {
	Nodes []ReviewContribution `json:"nodes"`
}

type RepoContributions struct {
	Repository    RepoRef `json:"repository"`
	Contributions struct {
		TotalCount int `json:"totalCount"`
	} `json:"contributions"`
}

type RepoRef struct {
	NameWithOwner string `json:"nameWithOwner"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// ReviewContribution is one raw review-submission event.
type ReviewContribution struct {
	OccurredAt        *time.Time         `json:"occurredAt"`
	PullRequestReview *ContributedReview `json:"pullRequestReview"`
	PullRequest       struct {
		Number int    `json:"number"`
		URL    string `json:"url"`
	} `json:"pullRequest"`
	Repository RepoRef `json:"repository"`
}

type ContributedReview struct {
	DatabaseID  int64      `json:"databaseId"`
	State       string     `json:"state"`
	SubmittedAt *time.Time `json:"submittedAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	Author      *Actor     `json:"author"`
	Comments    struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
}

// ActivityPullRequest is a PR search hit carrying everything the activity
// feed derives events from.
type ActivityPullRequest struct {
	Number     int        `json:"number"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	MergedAt   *time.Time `json:"mergedAt"`
	ClosedAt   *time.Time `json:"closedAt"`
	Repository RepoRef    `json:"repository"`
	Author     *Actor     `json:"author"`
	MergedBy   *Actor     `json:"mergedBy"`
	Reviews    reviewConn `json:"reviews"`
	ClosedBy   *Actor     `json:"-"`
}

// CommitSearchItem is one hit of the REST commit search.
type CommitSearchItem struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
		Committer struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// ── Internal GraphQL response types ──────────────────────────────────────────

type gqlPageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type gqlNamed struct {
	Login string  `json:"login"`
	Name  *string `json:"name"`
}

type gqlRepoNode struct {
	Name          string     `json:"name"`
	NameWithOwner string     `json:"nameWithOwner"`
	Description   *string    `json:"description"`
	IsPrivate     bool       `json:"isPrivate"`
	UpdatedAt     *time.Time `json:"updatedAt"`
	PushedAt      *time.Time `json:"pushedAt"`
}

type gqlOrgReposResponse struct {
	Organization *struct {
		Repositories struct {
			PageInfo gqlPageInfo   `json:"pageInfo"`
			Nodes    []gqlRepoNode `json:"nodes"`
		} `json:"repositories"`
	} `json:"organization"`
}

type gqlOrgIDResponse struct {
	Organization *struct {
		ID string `json:"id"`
	} `json:"organization"`
}

type gqlNamedConn struct {
	PageInfo gqlPageInfo `json:"pageInfo"`
	Nodes    []gqlNamed  `json:"nodes"`
}

type gqlOrgMembersResponse struct {
	Organization *struct {
		MembersWithRole gqlNamedConn `json:"membersWithRole"`
	} `json:"organization"`
}

type gqlOrgTeamsResponse struct {
	Organization *struct {
		Teams struct {
			PageInfo gqlPageInfo `json:"pageInfo"`
			Nodes    []struct {
				Slug    string       `json:"slug"`
				Name    string       `json:"name"`
				Members gqlNamedConn `json:"members"`
			} `json:"nodes"`
		} `json:"teams"`
	} `json:"organization"`
}

type gqlTeamMembersResponse struct {
	Organization *struct {
		Team *struct {
			Members gqlNamedConn `json:"members"`
		} `json:"team"`
	} `json:"organization"`
}

type gqlViewerResponse struct {
	Viewer struct {
		Login         string       `json:"login"`
		Name          *string      `json:"name"`
		Organizations gqlNamedConn `json:"organizations"`
	} `json:"viewer"`
}

type gqlRepoPRs struct {
	NameWithOwner string `json:"nameWithOwner"`
	PullRequests  struct {
		PageInfo gqlPageInfo       `json:"pageInfo"`
		Nodes    []PullRequestNode `json:"nodes"`
	} `json:"pullRequests"`
}

type gqlMemberContributionsResponse struct {
	Organization *struct {
		MembersWithRole struct {
			PageInfo gqlPageInfo         `json:"pageInfo"`
			Nodes    []UserContributions `json:"nodes"`
		} `json:"membersWithRole"`
	} `json:"organization"`
}

type gqlSearchCount struct {
	IssueCount int `json:"issueCount"`
}

type gqlActivityPR struct {
	ActivityPullRequest
	TimelineItems struct {
		Nodes []struct {
			Actor *Actor `json:"actor"`
		} `json:"nodes"`
	} `json:"timelineItems"`
}

type gqlActivitySearchResponse struct {
	Search struct {
		IssueCount int             `json:"issueCount"`
		Nodes      []gqlActivityPR `json:"nodes"`
	} `json:"search"`
}

func namedToMembers(nodes []gqlNamed) []Member {
	out := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Member{Login: n.Login, Name: n.Name})
	}
	return out
}
