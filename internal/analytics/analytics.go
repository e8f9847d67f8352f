package analytics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/posthog/posthog-go"
	"go.uber.org/zap"
)

// sink is the part of posthog.Client the dashboard uses.
type sink interface {
	Enqueue(posthog.Message) error
	Close() error
}

// Client wraps the PostHog client with nil-safe methods.
// A zero-value Client is a no-op (safe to use without initialization).
type Client struct {
	ph  sink
	log *zap.Logger
}

// New creates a PostHog analytics client. Returns a no-op client if apiKey is empty.
func New(apiKey string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if apiKey == "" {
		return &Client{log: log}
	}
	ph, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: "https://us.i.posthog.com",
	})
	if err != nil {
		log.Warn("analytics: failed to init posthog", zap.Error(err))
		return &Client{log: log}
	}
	return &Client{ph: ph, log: log}
}

// Close flushes pending events and closes the client.
func (c *Client) Close() {
	if c == nil || c.ph == nil {
		return
	}
	if err := c.ph.Close(); err != nil && c.log != nil {
		c.log.Warn("analytics: close", zap.Error(err))
	}
}

// Capture enqueues an event asynchronously. Safe to call on a no-op client.
func (c *Client) Capture(distinctID, event string, props map[string]any) {
	if c == nil || c.ph == nil {
		return
	}
	p := posthog.NewProperties()
	for k, v := range props {
		p.Set(k, v)
	}
	_ = c.ph.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: p,
	})
}

// Track records an "api_request" event per API call. The org URL parameter
// is attached when the route has one.
func (c *Client) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil || c.ph == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		props := map[string]any{
			"method":      r.Method,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if rc := chi.RouteContext(r.Context()); rc != nil {
			props["route"] = rc.RoutePattern()
			if org := rc.URLParam("org"); org != "" {
				props["org"] = org
			}
		}
		c.Capture(r.RemoteAddr, "api_request", props)
	})
}
