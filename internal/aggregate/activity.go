package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikiest/github-dashboard/internal/github"
)

type ActivityType string

const (
	ActivityCommit   ActivityType = "commit"
	ActivityReview   ActivityType = "review"
	ActivityPROpened ActivityType = "pr_opened"
	ActivityPRClosed ActivityType = "pr_closed"
	ActivityPRMerged ActivityType = "pr_merged"
)

const (
	DefaultActivityPageSize = 20
	maxActivityPageSize     = 100
	maxSearchBreadth        = 100
)

// activityAliases maps accepted type filter values to item types. "merge" is
// the name older clients use for pr_merged.
var activityAliases = map[string]ActivityType{
	"commit":    ActivityCommit,
	"review":    ActivityReview,
	"pr_opened": ActivityPROpened,
	"pr_closed": ActivityPRClosed,
	"pr_merged": ActivityPRMerged,
	"merge":     ActivityPRMerged,
}

// ActivityActor identifies who performed an event.
type ActivityActor struct {
	Login string  `json:"login"`
	Name  *string `json:"name,omitempty"`
}

// ActivityData is the variant payload of an ActivityItem. The set of
// implementations is closed: CommitData, ReviewData, PROpenedData,
// PRClosedData and PRMergedData.
type ActivityData interface {
	activityType() ActivityType
}

type CommitData struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	URL         string `json:"url"`
	CommitCount int    `json:"commitCount"`
}

type ReviewData struct {
	State    string         `json:"state"`
	PRNumber int            `json:"prNumber"`
	PRTitle  string         `json:"prTitle"`
	PRURL    string         `json:"prUrl"`
	Author   *ActivityActor `json:"author,omitempty"`
}

type PROpenedData struct {
	PRNumber int    `json:"prNumber"`
	PRTitle  string `json:"prTitle"`
	PRURL    string `json:"prUrl"`
}

type PRClosedData struct {
	PRNumber int            `json:"prNumber"`
	PRTitle  string         `json:"prTitle"`
	PRURL    string         `json:"prUrl"`
	Author   *ActivityActor `json:"author,omitempty"`
	ClosedBy *ActivityActor `json:"closedBy,omitempty"`
}

type PRMergedData struct {
	PRNumber int            `json:"prNumber"`
	PRTitle  string         `json:"prTitle"`
	PRURL    string         `json:"prUrl"`
	Author   *ActivityActor `json:"author,omitempty"`
	MergedBy *ActivityActor `json:"mergedBy,omitempty"`
}

func (CommitData) activityType() ActivityType   { return ActivityCommit }
func (ReviewData) activityType() ActivityType   { return ActivityReview }
func (PROpenedData) activityType() ActivityType { return ActivityPROpened }
func (PRClosedData) activityType() ActivityType { return ActivityPRClosed }
func (PRMergedData) activityType() ActivityType { return ActivityPRMerged }

// ActivityItem is one feed event. Type always matches Data.
type ActivityItem struct {
	ID         string        `json:"id"`
	OccurredAt time.Time     `json:"occurredAt"`
	Repo       string        `json:"repo"`
	Actor      ActivityActor `json:"actor"`
	Data       ActivityData  `json:"data"`
}

func (it ActivityItem) Type() ActivityType { return it.Data.activityType() }

func (it ActivityItem) MarshalJSON() ([]byte, error) {
	type plain ActivityItem
	return json.Marshal(struct {
		Type ActivityType `json:"type"`
		plain
	}{Type: it.Type(), plain: plain(it)})
}

type ActivityRequest struct {
	Org      string
	Types    []string
	Repo     string
	Username string
	Fullname string
	Cursor   string
	PageSize int
}

type ActivityPage struct {
	Items      []ActivityItem `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

// Activity assembles one page of the organization feed, newest first.
func (s *Service) Activity(ctx context.Context, req ActivityRequest) (*ActivityPage, error) {
	if strings.TrimSpace(req.Org) == "" {
		return nil, invalid("org", "is required")
	}
	types, err := parseActivityTypes(req.Types)
	if err != nil {
		return nil, err
	}
	page := 1
	if req.Cursor != "" {
		page, err = strconv.Atoi(req.Cursor)
		if err != nil || page < 1 {
			return nil, invalid("cursor", "must be a positive page number")
		}
	}
	perPage := req.PageSize
	switch {
	case perPage < 0:
		return nil, invalid("pageSize", "must be positive")
	case perPage == 0:
		perPage = DefaultActivityPageSize
	case perPage > maxActivityPageSize:
		perPage = maxActivityPageSize
	}

	now := s.now()
	oldest := now.Add(-days(s.opts.ActivityMaxAgeDays))
	f := newActivityFilter(req, types)
	fetch := activityFetch{
		org:         req.Org,
		oldest:      oldest,
		wantCommits: types[ActivityCommit],
		wantPRs:     types[ActivityReview] || types[ActivityPROpened] || types[ActivityPRClosed] || types[ActivityPRMerged],
	}
	start, end := (page-1)*perPage, page*perPage

	// Every page serves a prefix of the same feed: while a search is
	// saturated, only items newer than its horizon are final, so the search
	// is widened until the page fills or the breadth reaches its cap.
	var (
		kept    []ActivityItem
		res     *activityResult
		partial bool
	)
	breadth := searchBreadth(perPage, page)
	for {
		res, err = s.searchActivity(ctx, fetch, breadth)
		if err != nil {
			return nil, err
		}
		kept = filterActivity(res.items, oldest, f)
		partial = !res.horizon.IsZero() && breadth < maxSearchBreadth
		if !partial {
			break
		}
		kept = newerThan(kept, res.horizon)
		if len(kept) >= end {
			break
		}
		breadth = min(maxSearchBreadth, breadth*2)
	}

	out := &ActivityPage{Items: []ActivityItem{}}
	if start < len(kept) {
		out.Items = kept[start:min(end, len(kept))]
	}
	if len(kept) > end || partial {
		next := strconv.Itoa(page + 1)
		out.NextCursor = &next
	}

	s.log.Debug("assembled activity page",
		zap.String("org", req.Org), zap.Int("page", page), zap.Int("breadth", breadth),
		zap.Int("commits", res.commits), zap.Int("commit_total", res.commitTotal),
		zap.Int("prs", res.prs), zap.Int("pr_total", res.prTotal),
		zap.Int("kept", len(kept)), zap.Int("returned", len(out.Items)))
	return out, nil
}

type activityFetch struct {
	org         string
	oldest      time.Time
	wantCommits bool
	wantPRs     bool
}

type activityResult struct {
	items                []ActivityItem
	commits, prs         int
	commitTotal, prTotal int
	// horizon is zero when every search returned all of its hits. Otherwise
	// events at or before it may belong to hits beyond the breadth.
	horizon time.Time
}

// searchActivity runs the commit and PR searches concurrently at breadth.
func (s *Service) searchActivity(ctx context.Context, fetch activityFetch, breadth int) (*activityResult, error) {
	var (
		commits                  []github.CommitSearchItem
		prs                      []github.ActivityPullRequest
		res                      activityResult
		commitHorizon, prHorizon time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	if fetch.wantCommits {
		g.Go(func() error {
			q := fmt.Sprintf("org:%s committer-date:>=%s", fetch.org, fetch.oldest.UTC().Format("2006-01-02"))
			items, total, err := s.src.SearchCommits(gctx, q, breadth)
			if err != nil {
				return fmt.Errorf("commit search: %w", err)
			}
			commits, res.commitTotal = items, total
			if len(items) >= breadth && total > len(items) {
				for _, c := range items {
					if at := commitTime(c); commitHorizon.IsZero() || at.Before(commitHorizon) {
						commitHorizon = at
					}
				}
			}
			return nil
		})
	}
	if fetch.wantPRs {
		g.Go(func() error {
			q := fmt.Sprintf("org:%s is:pr updated:>=%s sort:updated-desc", fetch.org, fetch.oldest.UTC().Format(time.RFC3339))
			items, total, err := s.src.SearchPullRequests(gctx, q, breadth)
			if err != nil {
				return fmt.Errorf("pull request search: %w", err)
			}
			prs, res.prTotal = items, total
			if len(items) >= breadth && total > len(items) {
				for _, pr := range items {
					if prHorizon.IsZero() || pr.UpdatedAt.Before(prHorizon) {
						prHorizon = pr.UpdatedAt
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.commits, res.prs = len(commits), len(prs)
	res.horizon = commitHorizon
	if prHorizon.After(res.horizon) {
		res.horizon = prHorizon
	}
	for _, c := range commits {
		if it, ok := commitItem(c); ok {
			res.items = append(res.items, it)
		}
	}
	for _, pr := range prs {
		res.items = append(res.items, prItems(pr)...)
	}
	return &res, nil
}

// filterActivity drops items outside the max-age window or rejected by f,
// removes duplicate ids and sorts the rest newest first.
func filterActivity(items []ActivityItem, oldest time.Time, f activityFilter) []ActivityItem {
	seen := make(map[string]struct{}, len(items))
	kept := make([]ActivityItem, 0, len(items))
	for _, it := range items {
		if it.OccurredAt.Before(oldest) || !f.match(it) {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		kept = append(kept, it)
	}
	sortActivity(kept)
	return kept
}

// newerThan returns the leading items of a newest-first list that occurred
// strictly after horizon.
func newerThan(items []ActivityItem, horizon time.Time) []ActivityItem {
	n := sort.Search(len(items), func(i int) bool { return !items[i].OccurredAt.After(horizon) })
	return items[:n]
}

// searchBreadth is how many raw hits each search fetches for page. It grows
// with the page so that enough items survive client-side filtering.
func searchBreadth(perPage, page int) int {
	return min(maxSearchBreadth, perPage*max(3, page+1))
}

func parseActivityTypes(raw []string) (map[ActivityType]bool, error) {
	out := make(map[ActivityType]bool)
	if len(raw) == 0 {
		for _, t := range activityAliases {
			out[t] = true
		}
		return out, nil
	}
	for _, r := range raw {
		t, ok := activityAliases[strings.ToLower(strings.TrimSpace(r))]
		if !ok {
			return nil, invalid("types", "unknown activity type %q", r)
		}
		out[t] = true
	}
	return out, nil
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func commitItem(c github.CommitSearchItem) (ActivityItem, bool) {
	if c.Author == nil || c.Author.Login == "" || c.SHA == "" {
		return ActivityItem{}, false
	}
	at := commitTime(c)
	msg, _, _ := strings.Cut(c.Commit.Message, "\n")
	return ActivityItem{
		ID:         "commit:" + c.SHA,
		OccurredAt: at,
		Repo:       c.Repository.FullName,
		Actor:      ActivityActor{Login: c.Author.Login, Name: nonEmpty(c.Commit.Author.Name)},
		Data:       CommitData{SHA: c.SHA, Message: msg, URL: c.HTMLURL, CommitCount: 1},
	}, true
}

func commitTime(c github.CommitSearchItem) time.Time {
	if c.Commit.Committer.Date.IsZero() {
		return c.Commit.Author.Date
	}
	return c.Commit.Committer.Date
}

// prItems derives the opened, merged or closed, and review events of one PR.
func prItems(pr github.ActivityPullRequest) []ActivityItem {
	repo := pr.Repository.NameWithOwner
	ref := fmt.Sprintf("%s#%d", repo, pr.Number)
	author := actorOf(pr.Author)
	var items []ActivityItem

	if author != nil {
		items = append(items, ActivityItem{
			ID:         "opened:" + ref,
			OccurredAt: pr.CreatedAt,
			Repo:       repo,
			Actor:      *author,
			Data:       PROpenedData{PRNumber: pr.Number, PRTitle: pr.Title, PRURL: pr.URL},
		})
	}

	switch {
	case pr.MergedAt != nil:
		merger := actorOf(pr.MergedBy)
		if actor := firstActor(author, merger); actor != nil {
			items = append(items, ActivityItem{
				ID:         "merge:" + ref + ":" + pr.MergedAt.UTC().Format(time.RFC3339),
				OccurredAt: *pr.MergedAt,
				Repo:       repo,
				Actor:      *actor,
				Data:       PRMergedData{PRNumber: pr.Number, PRTitle: pr.Title, PRURL: pr.URL, Author: author, MergedBy: merger},
			})
		}
	case pr.ClosedAt != nil:
		closer := actorOf(pr.ClosedBy)
		if actor := firstActor(author, closer); actor != nil {
			items = append(items, ActivityItem{
				ID:         "closed:" + ref + ":" + pr.ClosedAt.UTC().Format(time.RFC3339),
				OccurredAt: *pr.ClosedAt,
				Repo:       repo,
				Actor:      *actor,
				Data:       PRClosedData{PRNumber: pr.Number, PRTitle: pr.Title, PRURL: pr.URL, Author: author, ClosedBy: closer},
			})
		}
	}

	for _, r := range pr.Reviews.Nodes {
		reviewer := actorOf(r.Author)
		at := reviewTime(r.SubmittedAt, r.UpdatedAt)
		if reviewer == nil || at == nil || r.State == "PENDING" {
			continue
		}
		id := fmt.Sprintf("review:%d", r.DatabaseID)
		if r.DatabaseID == 0 {
			id = fmt.Sprintf("review:%s:%s:%s", ref, reviewer.Login, at.UTC().Format(time.RFC3339))
		}
		items = append(items, ActivityItem{
			ID:         id,
			OccurredAt: *at,
			Repo:       repo,
			Actor:      *reviewer,
			Data:       ReviewData{State: r.State, PRNumber: pr.Number, PRTitle: pr.Title, PRURL: pr.URL, Author: author},
		})
	}
	return items
}

func actorOf(a *github.Actor) *ActivityActor {
	if a == nil || a.Login == "" {
		return nil
	}
	return &ActivityActor{Login: a.Login, Name: nonEmpty(a.Name)}
}

func firstActor(actors ...*ActivityActor) *ActivityActor {
	for _, a := range actors {
		if a != nil {
			return a
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ── Filtering ─────────────────────────────────────────────────────────────────

type activityFilter struct {
	types    map[ActivityType]bool
	repo     string
	username string
	fullname string
}

func newActivityFilter(req ActivityRequest, types map[ActivityType]bool) activityFilter {
	return activityFilter{
		types:    types,
		repo:     strings.ToLower(strings.TrimSpace(req.Repo)),
		username: strings.ToLower(strings.TrimSpace(req.Username)),
		fullname: strings.ToLower(strings.TrimSpace(req.Fullname)),
	}
}

func (f activityFilter) match(it ActivityItem) bool {
	if !f.types[it.Type()] {
		return false
	}
	if f.repo != "" && !strings.Contains(strings.ToLower(it.Repo), f.repo) {
		return false
	}
	if f.username != "" && !anyContains(logins(it), f.username) {
		return false
	}
	if f.fullname != "" && !anyContains(names(it), f.fullname) {
		return false
	}
	return true
}

// logins lists the logins a username filter is checked against: the primary
// actor, plus author and merger or closer for merge and close events.
func logins(it ActivityItem) []string {
	out := []string{it.Actor.Login}
	switch d := it.Data.(type) {
	case PRMergedData:
		out = appendLogins(out, d.Author, d.MergedBy)
	case PRClosedData:
		out = appendLogins(out, d.Author, d.ClosedBy)
	case CommitData, ReviewData, PROpenedData:
	}
	return out
}

// names lists every display name carried by the item.
func names(it ActivityItem) []string {
	people := []*ActivityActor{&it.Actor}
	switch d := it.Data.(type) {
	case ReviewData:
		people = append(people, d.Author)
	case PRMergedData:
		people = append(people, d.Author, d.MergedBy)
	case PRClosedData:
		people = append(people, d.Author, d.ClosedBy)
	case CommitData, PROpenedData:
	}
	var out []string
	for _, p := range people {
		if p != nil && p.Name != nil {
			out = append(out, *p.Name)
		}
	}
	return out
}

func appendLogins(out []string, actors ...*ActivityActor) []string {
	for _, a := range actors {
		if a != nil {
			out = append(out, a.Login)
		}
	}
	return out
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func sortActivity(items []ActivityItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].OccurredAt.Equal(items[j].OccurredAt) {
			return items[i].OccurredAt.After(items[j].OccurredAt)
		}
		return items[i].ID < items[j].ID
	})
}
