package aggregate

import "time"

// Window is a relative recency bound selected by the caller.
type Window string

const (
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

var windowDurations = map[Window]time.Duration{
	Window24h: 24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window30d: 30 * 24 * time.Hour,
}

// ParseWindow accepts "24h", "7d" or "30d". An empty string yields def.
func ParseWindow(s string, def Window) (Window, error) {
	if s == "" {
		return def, nil
	}
	w := Window(s)
	if _, ok := windowDurations[w]; !ok {
		return "", invalid("window", "must be one of 24h, 7d, 30d (got %q)", s)
	}
	return w, nil
}

func (w Window) Duration() time.Duration { return windowDurations[w] }

// Since returns the absolute lower bound of the window ending at now.
func (w Window) Since(now time.Time) time.Time { return now.Add(-w.Duration()) }
