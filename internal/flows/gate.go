package flows

import (
	"fmt"

	"laxenta/internal/registry"
	"laxenta/pkg/ratelimit"
)

// Gate is a command-level cooldown: one limiter class checked before a
// command runs at all.
type Gate struct {
	limiter *ratelimit.Limiter
	class   string
}

func NewGate(l *ratelimit.Limiter, class string) (*Gate, error) {
	if l == nil || !l.HasClass(class) {
		return nil, fmt.Errorf("%w: %q", registry.ErrUnknownCooldownClass, class)
	}
	return &Gate{limiter: l, class: class}, nil
}

func (g *Gate) Class() string { return g.class }

// Admit consumes one use for subject when the window allows it.
func (g *Gate) Admit(subject string) (ratelimit.Decision, error) {
	return g.limiter.TryAdmit(subject, g.class)
}
