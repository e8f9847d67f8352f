package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mikiest/github-dashboard/internal/aggregate"
)

func (h *Handler) Viewer(w http.ResponseWriter, r *http.Request) {
	v, err := h.dir.Viewer(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewer": v})
}

func (h *Handler) Repos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.dir.ListRepos(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

func (h *Handler) Teams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.dir.Teams(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.dir.Members(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

type prsBody struct {
	Org    string   `json:"org"`
	Repos  []string `json:"repos"`
	States []string `json:"states"`
	Window string   `json:"window"`
}

func (h *Handler) PullRequests(w http.ResponseWriter, r *http.Request) {
	var body prsBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	window, err := aggregate.ParseWindow(body.Window, aggregate.Window7d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	prs, err := h.agg.PullRequests(r.Context(), aggregate.PRRequest{
		Org:    body.Org,
		Repos:  body.Repos,
		States: body.States,
		Window: window,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prs": prs})
}

type reviewersBody struct {
	Org    string   `json:"org"`
	Window string   `json:"window"`
	Users  []string `json:"users"`
}

func (h *Handler) TopReviewers(w http.ResponseWriter, r *http.Request) {
	var body reviewersBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	window, err := aggregate.ParseWindow(body.Window, aggregate.Window24h)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.agg.ReviewerStats(r.Context(), aggregate.ReviewerRequest{
		Org:    body.Org,
		Users:  body.Users,
		Window: window,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type statsBody struct {
	Window string `json:"window"`
}

func (h *Handler) OrgStats(w http.ResponseWriter, r *http.Request) {
	var body statsBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	window, err := aggregate.ParseWindow(body.Window, aggregate.Window24h)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.agg.OrgStats(r.Context(), chi.URLParam(r, "org"), window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

type activityBody struct {
	Types    []string `json:"types"`
	Repo     string   `json:"repo"`
	Username string   `json:"username"`
	Fullname string   `json:"fullname"`
	Cursor   *string  `json:"cursor"`
	PageSize int      `json:"pageSize"`
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	var body activityBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	req := aggregate.ActivityRequest{
		Org:      chi.URLParam(r, "org"),
		Types:    body.Types,
		Repo:     body.Repo,
		Username: body.Username,
		Fullname: body.Fullname,
		PageSize: body.PageSize,
	}
	if body.Cursor != nil {
		req.Cursor = *body.Cursor
	}
	page, err := h.agg.Activity(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
