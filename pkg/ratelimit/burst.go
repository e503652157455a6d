package ratelimit

import (
	"sync"
	"time"

	"laxenta/pkg/clock"

	"golang.org/x/time/rate"
)

// BurstGuard is a per-subject token bucket used to shed click spam before it
// reaches the action table. Unlike Limiter it refills continuously.
type BurstGuard struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]*burstEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type burstEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewBurstGuard returns a guard allowing rps sustained events per subject
// with bursts of up to burst. Subjects idle for longer than idleTTL are
// forgotten on Sweep.
func NewBurstGuard(rps float64, burst int, idleTTL time.Duration, c clock.Clock) *BurstGuard {
	if burst < 1 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &BurstGuard{
		clock:   clock.OrReal(c),
		entries: make(map[string]*burstEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
	}
}

// Allow reports whether subject may act now, consuming a token if so.
func (g *BurstGuard) Allow(subject string) bool {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	ent, ok := g.entries[subject]
	if !ok {
		ent = &burstEntry{lim: rate.NewLimiter(g.rps, g.burst)}
		g.entries[subject] = ent
	}
	ent.lastSeen = now
	return ent.lim.AllowN(now, 1)
}

// Sweep forgets subjects not seen within the idle TTL.
func (g *BurstGuard) Sweep() int {
	cutoff := g.clock.Now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for subject, ent := range g.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(g.entries, subject)
			removed++
		}
	}
	return removed
}
