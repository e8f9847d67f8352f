package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/github"
)

// Directory is the pass-through part of the GitHub gateway.
type Directory interface {
	ListRepos(ctx context.Context, org string) ([]github.Repo, error)
	Teams(ctx context.Context, org string) ([]github.Team, error)
	Members(ctx context.Context, org string) ([]github.Member, error)
	Viewer(ctx context.Context) (*github.Viewer, error)
}

// Aggregator computes the dashboard views. *aggregate.Service satisfies it.
type Aggregator interface {
	PullRequests(ctx context.Context, req aggregate.PRRequest) ([]aggregate.PullRequest, error)
	ReviewerStats(ctx context.Context, req aggregate.ReviewerRequest) (*aggregate.ReviewerStats, error)
	OrgStats(ctx context.Context, org string, window aggregate.Window) (*aggregate.OrgStats, error)
	Activity(ctx context.Context, req aggregate.ActivityRequest) (*aggregate.ActivityPage, error)
}

// Handler serves the dashboard JSON API.
type Handler struct {
	dir Directory
	agg Aggregator
	log *zap.Logger
}

func New(dir Directory, agg Aggregator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{dir: dir, agg: agg, log: log}
}

// Mount registers every /api route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/viewer", h.Viewer)
		r.Post("/prs", h.PullRequests)
		r.Post("/reviewers/top", h.TopReviewers)

		r.Route("/orgs/{org}", func(r chi.Router) {
			r.Get("/repos", h.Repos)
			r.Get("/teams", h.Teams)
			r.Get("/members", h.Members)
			r.Post("/stats", h.OrgStats)
			r.Post("/activity", h.Activity)
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &aggregate.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}
