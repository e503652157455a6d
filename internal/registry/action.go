package registry

import (
	"context"
	"time"
)

// Action is the callback bound to one interactive control. Event is whatever
// the boundary passes through (for Discord, the *discordgo.InteractionCreate
// plus session); the registry never inspects it.
type Action interface {
	Invoke(ctx context.Context, subject string, event any) error
}

// ActionFunc adapts a plain function to Action.
type ActionFunc func(ctx context.Context, subject string, event any) error

// Invoke calls f.
func (f ActionFunc) Invoke(ctx context.Context, subject string, event any) error {
	return f(ctx, subject, event)
}

// Middleware wraps an action (deadline, logging, metrics).
type Middleware func(Action) Action

// Chain applies middlewares in order; the first in the list is the outermost.
func Chain(a Action, mws ...Middleware) Action {
	for i := len(mws) - 1; i >= 0; i-- {
		a = mws[i](a)
	}
	return a
}

// Deadline bounds the context handed to the wrapped action. The registry has
// no cancellation of its own, so actions that must not outlive d use this.
func Deadline(d time.Duration) Middleware {
	return func(next Action) Action {
		return ActionFunc(func(ctx context.Context, subject string, event any) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Invoke(ctx, subject, event)
		})
	}
}
