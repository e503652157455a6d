// Package ratelimit implements the per-subject, per-class fixed-window counter
// that gates cooldown-scoped actions (rolls, marriages, command spam).
//
// A bucket is created on the first admission attempt for a (subject, class)
// pair and is reset, not deleted, when its window elapses. Denials never
// touch the counter.
//
// Example:
//
//	lim, err := ratelimit.New(map[string]ratelimit.Policy{
//	    "rolls": {Max: 8, Window: 55 * time.Minute},
//	})
//	dec, err := lim.TryAdmit(userID, "rolls")
//	if !dec.Admitted {
//	    // tell the user to come back at dec.ResetAt
//	}
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"laxenta/pkg/clock"
)

var (
	// ErrUnknownClass is returned when a class has no configured policy.
	ErrUnknownClass = errors.New("ratelimit: unknown class")
	// ErrInvalidPolicy is returned for a policy with a non-positive max or window.
	ErrInvalidPolicy = errors.New("ratelimit: invalid policy")
)

// Policy is the (max-count, window-duration) pair of one action class.
type Policy struct {
	Max    int
	Window time.Duration
}

// Validate reports whether the policy can admit anything at all.
func (p Policy) Validate() error {
	if p.Max <= 0 || p.Window <= 0 {
		return fmt.Errorf("%w: max=%d window=%s", ErrInvalidPolicy, p.Max, p.Window)
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%d/%s", p.Max, p.Window)
}

// Decision is the result of an admission attempt.
type Decision struct {
	Admitted  bool
	Remaining int
	// ResetAt is when the current window closes. Always set, also on admission.
	ResetAt time.Time
}

type bucketKey struct {
	subject string
	class   string
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	policies map[string]Policy
	buckets  map[bucketKey]*bucket
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = clock.OrReal(c) }
}

// New builds a Limiter for the given per-class policies.
func New(policies map[string]Policy, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		clock:    clock.Real{},
		policies: make(map[string]Policy, len(policies)),
		buckets:  make(map[bucketKey]*bucket),
	}
	for class, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("class %q: %w", class, err)
		}
		l.policies[class] = p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TryAdmit consumes one slot of class for subject if the current window has room.
func (l *Limiter) TryAdmit(subject, class string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.policies[class]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}

	now := l.clock.Now()
	key := bucketKey{subject: subject, class: class}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}

	if !ok || now.Sub(b.windowStart) > p.Window {
		b.windowStart = now
		b.count = 1
		return Decision{Admitted: true, Remaining: p.Max - 1, ResetAt: now.Add(p.Window)}, nil
	}

	resetAt := b.windowStart.Add(p.Window)
	if b.count < p.Max {
		b.count++
		return Decision{Admitted: true, Remaining: p.Max - b.count, ResetAt: resetAt}, nil
	}
	return Decision{Admitted: false, Remaining: 0, ResetAt: resetAt}, nil
}

// Peek reports what TryAdmit would decide right now without consuming anything.
func (l *Limiter) Peek(subject, class string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.policies[class]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}

	now := l.clock.Now()
	b, ok := l.buckets[bucketKey{subject: subject, class: class}]
	if !ok || now.Sub(b.windowStart) > p.Window {
		return Decision{Admitted: true, Remaining: p.Max, ResetAt: now.Add(p.Window)}, nil
	}
	return Decision{
		Admitted:  b.count < p.Max,
		Remaining: p.Max - b.count,
		ResetAt:   b.windowStart.Add(p.Window),
	}, nil
}

// Reset forgets the bucket of (subject, class).
func (l *Limiter) Reset(subject, class string) {
	l.mu.Lock()
	delete(l.buckets, bucketKey{subject: subject, class: class})
	l.mu.Unlock()
}

// HasClass reports whether class has a policy.
func (l *Limiter) HasClass(class string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.policies[class]
	return ok
}

// Policy returns the policy of class.
func (l *Limiter) Policy(class string) (Policy, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.policies[class]
	return p, ok
}

// SetPolicy installs or replaces the policy of class. Existing buckets keep
// their window start and are judged against the new policy from now on.
func (l *Limiter) SetPolicy(class string, p Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("class %q: %w", class, err)
	}
	l.mu.Lock()
	l.policies[class] = p
	l.mu.Unlock()
	return nil
}

// Sweep drops buckets whose window has elapsed. It only reclaims memory: a
// swept bucket and an elapsed one produce the same next decision.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for key, b := range l.buckets {
		p, ok := l.policies[key.class]
		if !ok || now.Sub(b.windowStart) > p.Window {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
