// Package ratelimit implements per-client sliding-window admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultLimit  = 10
	defaultWindow = time.Hour
)

// Config holds rate limiter configuration.
type Config struct {
	// Limit is the number of admitted requests per client per Window.
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time until the oldest counted request leaves the
	// window. Zero when Allowed.
	RetryAfter time.Duration
}

// SlidingWindow admits at most Limit requests per client within any rolling
// Window. It is safe for concurrent use.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

// New creates a SlidingWindow, applying defaults for unset fields.
func New(cfg Config) *SlidingWindow {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	return &SlidingWindow{
		limit:  cfg.Limit,
		window: cfg.Window,
		hits:   make(map[string][]time.Time),
	}
}

// Limit returns the per-client ceiling.
func (l *SlidingWindow) Limit() int { return l.limit }

// Window returns the window length.
func (l *SlidingWindow) Window() time.Duration { return l.window }

// Admit reports whether client may make a request at now. An admitted
// request is recorded; a rejected one is not.
func (l *SlidingWindow) Admit(client string, now time.Time) bool {
	return l.Decide(client, now).Allowed
}

// Decide is Admit with the remaining budget and retry hint.
func (l *SlidingWindow) Decide(client string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(l.hits[client], now)
	if len(kept) >= l.limit {
		l.hits[client] = kept
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: kept[0].Add(l.window).Sub(now),
		}
	}
	kept = append(kept, now)
	l.hits[client] = kept
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(kept),
	}
}

// prune drops timestamps that are no longer inside the window, reusing the
// slice's backing array.
func (l *SlidingWindow) prune(ts []time.Time, now time.Time) []time.Time {
	idx := 0
	for idx < len(ts) && now.Sub(ts[idx]) >= l.window {
		idx++
	}
	if idx == 0 {
		return ts
	}
	n := copy(ts, ts[idx:])
	return ts[:n]
}

// Cleanup forgets clients with no requests inside the window. Admission is
// unaffected; it only bounds memory for one-off clients.
func (l *SlidingWindow) Cleanup(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for client, ts := range l.hits {
		kept := l.prune(ts, now)
		if len(kept) == 0 {
			delete(l.hits, client)
			removed++
			continue
		}
		// prune shifts in place, so the stored slice must be replaced.
		l.hits[client] = kept
	}
	return removed
}

// Clients returns the number of tracked clients.
func (l *SlidingWindow) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *SlidingWindow) StartJanitor(ctx context.Context, every time.Duration, now func() time.Time) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup(now())
			}
		}
	}()
}
