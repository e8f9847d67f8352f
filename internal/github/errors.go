package github

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("GitHub token invalid or expired")
)

// defaultRetryAfter is used when GitHub throttles without saying for how long.
const defaultRetryAfter = 60 * time.Second

// RateLimitError is returned when GitHub signals primary or secondary rate
// limiting. RetryAfter is the caller-visible hint; the client never retries.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GitHub rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("GitHub rate limit exceeded: %s (retry after %s)", e.Message, e.RetryAfter)
}

// GraphQLError is one entry of the GraphQL response "errors" array.
type GraphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

// QueryError wraps a non-empty GraphQL errors array. The data portion of the
// response has already been decoded when this is returned.
type QueryError struct {
	Errors []GraphQLError
}

func (e *QueryError) Error() string {
	if len(e.Errors) == 0 {
		return "GraphQL: unknown error"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "GraphQL: " + strings.Join(msgs, "; ")
}

// OnlyNotFound reports whether every error is a NOT_FOUND resolution error,
// i.e. the query succeeded except for some aliases resolving to null.
func (e *QueryError) OnlyNotFound() bool {
	if len(e.Errors) == 0 {
		return false
	}
	for _, ge := range e.Errors {
		if ge.Type != "NOT_FOUND" {
			return false
		}
	}
	return true
}

// BadInput reports whether every error blames the query's arguments, such as
// an unknown login or a malformed search, rather than GitHub itself.
func (e *QueryError) BadInput() bool {
	if len(e.Errors) == 0 {
		return false
	}
	for _, ge := range e.Errors {
		if ge.Type != "INVALID" && ge.Type != "NOT_FOUND" {
			return false
		}
	}
	return true
}

// ResolutionError means an organization, repository or user could not be
// resolved, either because it does not exist or the token cannot see it.
type ResolutionError struct {
	Kind string // "organization", "repository", "user"
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s %q (missing or not visible to this token)", e.Kind, e.Name)
}

func (e *ResolutionError) Unwrap() error { return ErrNotFound }

// IsRateLimited reports whether err (or anything it wraps) is a RateLimitError.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
