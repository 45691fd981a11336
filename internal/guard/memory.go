package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is a single-process fixed-window limiter for tests and
// development runs without Redis.
type MemoryGuard struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	period    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemoryGuard(limit int, period time.Duration) *MemoryGuard {
	return &MemoryGuard{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// WithClock substitutes the time source, for window-reset tests.
func (g *MemoryGuard) WithClock(now func() time.Time) *MemoryGuard {
	g.now = now
	return g
}

func (g *MemoryGuard) Allow(ctx context.Context, actorID, op string) error {
	key := op + ":" + actorID

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)
	w, ok := g.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(g.period)}
		g.windows[key] = w
	}
	w.count++
	if w.count > g.limit {
		return ErrRateLimited
	}
	return nil
}

// sweep drops expired windows so the map does not grow with every
// distinct actor/op pair ever seen. Runs at most once per period.
// Caller holds g.mu.
func (g *MemoryGuard) sweep(now time.Time) {
	if now.Sub(g.lastSweep) < g.period {
		return
	}
	g.lastSweep = now
	for key, w := range g.windows {
		if !now.Before(w.resetAt) {
			delete(g.windows, key)
		}
	}
}
