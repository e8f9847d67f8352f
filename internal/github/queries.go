package github

import (
	"fmt"
	"strings"
)

// ── GraphQL documents ─────────────────────────────────────────────────────────

const orgIDQuery = `
query OrgID($login: String!) {
  organization(login: $login) { id }
}`

const orgReposQuery = `
query OrgRepos($login: String!, $cursor: String) {
  organization(login: $login) {
    repositories(first: 100, after: $cursor, orderBy: {field: UPDATED_AT, direction: DESC}) {
      pageInfo { hasNextPage endCursor }
      nodes { name nameWithOwner description isPrivate updatedAt pushedAt }
    }
  }
}`

const orgMembersQuery = `
query OrgMembers($login: String!, $cursor: String) {
  organization(login: $login) {
    membersWithRole(first: 100, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes { login name }
    }
  }
}`

const orgTeamsQuery = `
query OrgTeams($login: String!, $cursor: String) {
  organization(login: $login) {
    teams(first: 50, after: $cursor, orderBy: {field: NAME, direction: ASC}) {
      pageInfo { hasNextPage endCursor }
      nodes {
        slug name
        members(first: 100) {
          pageInfo { hasNextPage endCursor }
          nodes { login name }
        }
      }
    }
  }
}`

const teamMembersQuery = `
query TeamMembers($login: String!, $slug: String!, $cursor: String) {
  organization(login: $login) {
    team(slug: $slug) {
      members(first: 100, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes { login name }
      }
    }
  }
}`

const viewerQuery = `
query Viewer($cursor: String) {
  viewer {
    login name
    organizations(first: 100, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes { login name }
    }
  }
}`

// prConnFragment is shared by the batched query and the single-repo
// continuation query so both decode into gqlRepoPRs.
const prConnFragment = `
fragment PRConn on Repository {
  nameWithOwner
  pullRequests(first: $first, after: $cursor, states: $states, orderBy: {field: UPDATED_AT, direction: DESC}) {
    pageInfo { hasNextPage endCursor }
    nodes {
      number title url isDraft createdAt updatedAt mergedAt closedAt
      baseRefName headRefName additions deletions changedFiles
      author { login }
      reviewRequests(first: 20) {
        nodes {
          requestedReviewer {
            __typename
            ... on User { login }
            ... on Mannequin { login }
            ... on Team { slug }
          }
        }
      }
      reviews(first: 50) {
        nodes { databaseId state submittedAt updatedAt author { login } }
      }
    }
  }
}`

const repoPRPageQuery = `
query RepoPRPage($owner: String!, $name: String!, $first: Int!, $states: [PullRequestState!], $cursor: String) {
  repository(owner: $owner, name: $name) { ...PRConn }
}` + prConnFragment

const repoCountFields = `repository { nameWithOwner owner { login } } contributions { totalCount }`

const userContribFragment = `
fragment UserContrib on User {
  login name
  contributionsCollection(from: $from, to: $to, organizationID: $orgId) {
    totalCommitContributions
    commitContributionsByRepository(maxRepositories: 100) { ` + repoCountFields + ` }
    pullRequestReviewContributions(first: 100) {
      nodes {
        occurredAt
        pullRequest { number url }
        repository { nameWithOwner owner { login } }
        pullRequestReview {
          databaseId state submittedAt updatedAt
          author { login }
          comments { totalCount }
        }
      }
    }
  }
}`

const memberContributionsQuery = `
query MemberContributions($login: String!, $orgId: ID!, $from: DateTime!, $to: DateTime!, $cursor: String) {
  organization(login: $login) {
    membersWithRole(first: 25, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes {
        login name
        contributionsCollection(from: $from, to: $to, organizationID: $orgId) {
          totalCommitContributions
          totalPullRequestContributions
          totalPullRequestReviewContributions
          commitContributionsByRepository(maxRepositories: 100) { ` + repoCountFields + ` }
          pullRequestContributionsByRepository(maxRepositories: 100) { ` + repoCountFields + ` }
          pullRequestReviewContributionsByRepository(maxRepositories: 100) { ` + repoCountFields + ` }
        }
      }
    }
  }
}`

const activityPRSearchQuery = `
query ActivityPRs($q: String!, $first: Int!) {
  search(query: $q, type: ISSUE, first: $first) {
    issueCount
    nodes {
      ... on PullRequest {
        number title url state createdAt updatedAt mergedAt closedAt
        repository { nameWithOwner owner { login } }
        author { login ... on User { name } }
        mergedBy { login ... on User { name } }
        reviews(last: 30) {
          nodes { databaseId state submittedAt updatedAt author { login ... on User { name } } }
        }
        timelineItems(itemTypes: [CLOSED_EVENT], last: 1) {
          nodes { ... on ClosedEvent { actor { login ... on User { name } } } }
        }
      }
    }
  }
}`

// ── Aliased batch builders ────────────────────────────────────────────────────

// batchDoc accumulates (alias, fragment) pairs into one document. Responses
// are demultiplexed by walking aliases in the same order; key order of the
// response object is never relied upon.
type batchDoc struct {
	name    string
	decls   []string
	fields  []string
	aliases []string
	vars    map[string]any
}

func newBatchDoc(name string, decls ...string) *batchDoc {
	return &batchDoc{name: name, decls: decls, vars: make(map[string]any)}
}

// add registers alias with a selection that references the variable
// varName of gqlType bound to value.
func (b *batchDoc) add(alias, varName, gqlType string, value any, selection string) {
	b.decls = append(b.decls, fmt.Sprintf("$%s: %s", varName, gqlType))
	b.vars[varName] = value
	b.aliases = append(b.aliases, alias)
	b.fields = append(b.fields, "  "+alias+": "+selection)
}

func (b *batchDoc) String() string {
	var sb strings.Builder
	sb.WriteString("query ")
	sb.WriteString(b.name)
	sb.WriteString("(")
	sb.WriteString(strings.Join(b.decls, ", "))
	sb.WriteString(") {\n")
	sb.WriteString(strings.Join(b.fields, "\n"))
	sb.WriteString("\n}")
	return sb.String()
}

// buildPRBatch builds one query addressing each repo as r0, r1, ...
func buildPRBatch(owner string, repos []string, q PRQuery) *batchDoc {
	doc := newBatchDoc("PRBatch",
		"$owner: String!", "$first: Int!", "$states: [PullRequestState!]", "$cursor: String")
	doc.vars["owner"] = owner
	doc.vars["first"] = q.PerRepo
	doc.vars["states"] = q.States
	doc.vars["cursor"] = nil
	for i, name := range repos {
		doc.add(fmt.Sprintf("r%d", i), fmt.Sprintf("n%d", i), "String!", name,
			fmt.Sprintf("repository(owner: $owner, name: $n%d) { ...PRConn }", i))
	}
	return doc
}

// buildUserBatch builds one query addressing each login as u0, u1, ...
func buildUserBatch(logins []string) *batchDoc {
	doc := newBatchDoc("UserContributions", "$orgId: ID!", "$from: DateTime!", "$to: DateTime!")
	for i, login := range logins {
		doc.add(fmt.Sprintf("u%d", i), fmt.Sprintf("l%d", i), "String!", login,
			fmt.Sprintf("user(login: $l%d) { ...UserContrib }", i))
	}
	return doc
}

// buildCountBatch builds one count-only search per query string as q0, q1, ...
func buildCountBatch(queries []string) *batchDoc {
	doc := newBatchDoc("SearchCounts")
	for i, q := range queries {
		doc.add(fmt.Sprintf("q%d", i), fmt.Sprintf("s%d", i), "String!", q,
			fmt.Sprintf("search(query: $s%d, type: ISSUE) { issueCount }", i))
	}
	return doc
}
