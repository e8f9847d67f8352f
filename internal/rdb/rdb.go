package rdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitPfx = "ghdash:rl:"

type Client struct {
	rdb *redis.Client
	log *zap.Logger
	now func() time.Time
}

func New(redisURL string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{rdb: redis.NewClient(opts), log: log, now: time.Now}
	if err := c.rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return c, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// RateLimit returns a chi-compatible middleware that limits requests per IP.
// max is the request count allowed per fixed window.
func (c *Client) RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	windowSecs := int64(window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := realIP(r)
			now := c.now().Unix()
			win := now / windowSecs
			key := fmt.Sprintf("%s%s:%d", rateLimitPfx, ip, win)

			pipe := c.rdb.Pipeline()
			incr := pipe.Incr(r.Context(), key)
			pipe.Expire(r.Context(), key, window*2)
			if _, err := pipe.Exec(r.Context()); err != nil {
				// Fail open: a redis outage must not take the API down with it.
				c.log.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if incr.Val() > int64(max) {
				retry := (win+1)*windowSecs - now
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":        "Too many requests",
					"retryAfterMs": retry * 1000,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func realIP(r *http.Request) string {
	if xfwd := r.Header.Get("X-Forwarded-For"); xfwd != "" {
		return strings.TrimSpace(strings.SplitN(xfwd, ",", 2)[0])
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		return ip[:idx]
	}
	return ip
}
