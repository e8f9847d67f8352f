package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/github"
)

type errorBody struct {
	Error        string `json:"error"`
	RetryAfterMs *int64 `json:"retryAfterMs,omitempty"`
}

// writeError maps err onto the API's status codes:
// validation and resolution failures, and GraphQL errors that only reject the
// query's arguments, are 400. GitHub throttling is 429 with a retry hint.
// Anything else is 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *aggregate.ValidationError
		re *github.ResolutionError
		qe *github.QueryError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &re), errors.As(err, &qe) && qe.BadInput():
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		if rl, ok := github.IsRateLimited(err); ok {
			ms := rl.RetryAfter.Milliseconds()
			secs := (ms + 999) / 1000
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
			h.log.Warn("github rate limited", zap.String("path", r.URL.Path), zap.Duration("retry_after", rl.RetryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error(), RetryAfterMs: &ms})
			return
		}
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}
