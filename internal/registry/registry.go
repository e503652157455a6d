// Package registry is the transient action table behind every interactive
// control the bot renders: confirmation buttons, pagination arrows, timed
// proposals. A command registers an Action under the control's key together
// with who may press it and for how long; the interaction boundary later
// calls Dispatch with the key and the presser.
//
// Dispatch checks, in order, presence and expiry, the allow-list, and the
// optional cooldown class, and only then invokes the action. Single-use
// entries are claimed inside the same critical section, so a double click
// fires the action exactly once. The table lock is never held while an action
// runs.
package registry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"laxenta/pkg/clock"
	"laxenta/pkg/ratelimit"

	"github.com/rs/zerolog"
)

// Lifetime decides what happens to an entry after a successful dispatch.
type Lifetime int

const (
	// SingleUse entries are removed by their first admitted dispatch.
	SingleUse Lifetime = iota
	// Persistent entries stay until they expire.
	Persistent
	// Manual entries stay until Remove, RemoveGroup or expiry.
	Manual
)

func (l Lifetime) String() string {
	switch l {
	case SingleUse:
		return "single-use"
	case Persistent:
		return "persistent"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Options describe one registration.
type Options struct {
	Lifetime Lifetime
	// TTL is mandatory; no entry lives forever.
	TTL time.Duration
	// CooldownClass, when set, must name a class known to the limiter.
	CooldownClass string
	// Group ties sibling controls together (confirm/cancel). When a
	// single-use member is dispatched the whole group is dropped.
	Group string
	// Exclusive rejects the registration if a live entry already holds the key.
	Exclusive bool
}

type registration struct {
	key       string
	allowed   map[string]struct{}
	action    Action
	lifetime  Lifetime
	expiresAt time.Time
	cooldown  string
	group     string
}

func (r *registration) permits(subject string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[subject]
	return ok
}

// Registry is safe for concurrent use. Create one per process.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*registration
	groups   map[string]map[string]struct{}
	limiter  *ratelimit.Limiter
	clock    clock.Clock
	logger   zerolog.Logger
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = clock.OrReal(c) }
}

// WithLogger sets the logger used for failed actions and debug tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l.With().Str("component", "registry").Logger() }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// New creates an empty registry. limiter may be nil when no registration uses
// a cooldown class.
func New(limiter *ratelimit.Limiter, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*registration),
		groups:  make(map[string]map[string]struct{}),
		limiter: limiter,
		clock:   clock.Real{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds action to key. An existing entry under key is replaced
// unless opts.Exclusive is set, in which case ErrKeyExists is returned.
// An empty allowed list lets any subject dispatch.
func (r *Registry) Register(key string, allowed []string, action Action, opts Options) error {
	if key == "" {
		return ErrEmptyKey
	}
	if action == nil {
		return fmt.Errorf("%w: key %q", ErrNilAction, key)
	}
	if opts.TTL <= 0 {
		return fmt.Errorf("%w: key %q got %s", ErrInvalidTTL, key, opts.TTL)
	}
	switch opts.Lifetime {
	case SingleUse, Persistent, Manual:
	default:
		return fmt.Errorf("%w: key %q got %d", ErrInvalidLifetime, key, int(opts.Lifetime))
	}
	if opts.CooldownClass != "" && (r.limiter == nil || !r.limiter.HasClass(opts.CooldownClass)) {
		return fmt.Errorf("%w: key %q class %q", ErrUnknownCooldownClass, key, opts.CooldownClass)
	}

	reg := &registration{
		key:      key,
		action:   action,
		lifetime: opts.Lifetime,
		cooldown: opts.CooldownClass,
		group:    opts.Group,
	}
	if len(allowed) > 0 {
		reg.allowed = make(map[string]struct{}, len(allowed))
		for _, s := range allowed {
			reg.allowed[s] = struct{}{}
		}
	}

	r.mu.Lock()
	now := r.clock.Now()
	if old, ok := r.entries[key]; ok {
		if opts.Exclusive && now.Before(old.expiresAt) {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrKeyExists, key)
		}
		r.removeLocked(old)
	}
	reg.expiresAt = now.Add(opts.TTL)
	r.entries[key] = reg
	if reg.group != "" {
		members, ok := r.groups[reg.group]
		if !ok {
			members = make(map[string]struct{})
			r.groups[reg.group] = members
		}
		members[key] = struct{}{}
	}
	live := len(r.entries)
	r.mu.Unlock()

	r.observeSize(live)
	r.logger.Debug().
		Str("key", key).
		Str("lifetime", opts.Lifetime.String()).
		Dur("ttl", opts.TTL).
		Str("cooldown", opts.CooldownClass).
		Str("group", opts.Group).
		Msg("action registered")
	return nil
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(key string, allowed []string, fn func(ctx context.Context, subject string, event any) error, opts Options) error {
	if fn == nil {
		return fmt.Errorf("%w: key %q", ErrNilAction, key)
	}
	return r.Register(key, allowed, ActionFunc(fn), opts)
}

// Dispatch routes one physical click to the action under key. It never
// panics and never returns an error; every failure is an Outcome.
func (r *Registry) Dispatch(ctx context.Context, key, subject string, event any) Outcome {
	reg, out, live, ok := r.claim(key, subject)
	if live >= 0 {
		r.observeSize(live)
	}
	if !ok {
		r.logger.Debug().
			Str("key", key).
			Str("subject", subject).
			Str("outcome", out.String()).
			Msg("dispatch rejected")
		r.observeDispatch(out.Kind)
		return out
	}

	if err := r.invoke(ctx, reg, subject, event); err != nil {
		r.logger.Error().
			Err(err).
			Str("key", key).
			Str("subject", subject).
			Str("lifetime", reg.lifetime.String()).
			Msg("action failed")
		out = Outcome{Kind: HandlerFailed, Err: err}
		r.observeDispatch(out.Kind)
		return out
	}

	r.observeDispatch(Handled)
	return Outcome{Kind: Handled}
}

// claim performs every table-side step of Dispatch under the lock. live is
// the new table size when the table changed, -1 otherwise.
func (r *Registry) claim(key, subject string) (*registration, Outcome, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[key]
	if !ok {
		return nil, Outcome{Kind: Ignored}, -1, false
	}
	if !r.clock.Now().Before(reg.expiresAt) {
		r.removeLocked(reg)
		return nil, Outcome{Kind: Ignored}, len(r.entries), false
	}
	if !reg.permits(subject) {
		return nil, Outcome{Kind: Unauthorized}, -1, false
	}
	if reg.cooldown != "" {
		dec, err := r.limiter.TryAdmit(subject, reg.cooldown)
		if err != nil {
			return nil, Outcome{Kind: HandlerFailed, Err: err}, -1, false
		}
		if !dec.Admitted {
			return nil, Outcome{Kind: RateLimited, ResetAt: dec.ResetAt}, -1, false
		}
	}
	if reg.lifetime != SingleUse {
		return reg, Outcome{}, -1, true
	}

	if reg.group != "" {
		r.removeGroupLocked(reg.group)
	} else {
		r.removeLocked(reg)
	}
	return reg, Outcome{}, len(r.entries), true
}

func (r *Registry) invoke(ctx context.Context, reg *registration, subject string, event any) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	return reg.action.Invoke(ctx, subject, event)
}

// Remove drops the entry under key and reports whether one existed.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	reg, ok := r.entries[key]
	if ok {
		r.removeLocked(reg)
	}
	live := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.observeSize(live)
	}
	return ok
}

// RemoveGroup drops every entry registered under group.
func (r *Registry) RemoveGroup(group string) int {
	r.mu.Lock()
	n := r.removeGroupLocked(group)
	live := len(r.entries)
	r.mu.Unlock()

	if n > 0 {
		r.observeSize(live)
	}
	return n
}

// Len returns the number of entries in the table, expired ones included
// until they are swept or touched.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes expired entries. Dispatch is already correct without it;
// sweeping only bounds memory for controls nobody clicks.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	now := r.clock.Now()
	removed := 0
	for _, reg := range r.entries {
		if !now.Before(reg.expiresAt) {
			r.removeLocked(reg)
			removed++
		}
	}
	live := len(r.entries)
	r.mu.Unlock()

	if removed > 0 {
		r.observeSize(live)
		r.logger.Debug().Int("removed", removed).Int("live", live).Msg("registry swept")
	}
	return removed
}

// removeLocked must be called with mu held.
func (r *Registry) removeLocked(reg *registration) {
	delete(r.entries, reg.key)
	if reg.group == "" {
		return
	}
	if members, ok := r.groups[reg.group]; ok {
		delete(members, reg.key)
		if len(members) == 0 {
			delete(r.groups, reg.group)
		}
	}
}

// removeGroupLocked must be called with mu held.
func (r *Registry) removeGroupLocked(group string) int {
	members, ok := r.groups[group]
	if !ok {
		return 0
	}
	for key := range members {
		delete(r.entries, key)
	}
	delete(r.groups, group)
	return len(members)
}

func (r *Registry) observeDispatch(k Kind) {
	if r.observer != nil {
		r.observer.ObserveDispatch(k)
	}
}

func (r *Registry) observeSize(live int) {
	if r.observer != nil {
		r.observer.ObserveSize(live)
	}
}
