package cmd

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/analytics"
	"github.com/mikiest/github-dashboard/internal/handlers"
	"github.com/mikiest/github-dashboard/internal/logger"
)

// routerDeps are the optional pieces of the HTTP stack. A nil limiter
// disables per-IP rate limiting.
type routerDeps struct {
	allowedOrigins []string
	limiter        func(http.Handler) http.Handler
	analytics      *analytics.Client
	log            *zap.Logger
}

func newRouter(h *handlers.Handler, deps routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(deps.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	if deps.limiter != nil {
		r.Use(deps.limiter)
	}
	r.Use(deps.analytics.Track)

	h.Mount(r)
	return r
}
