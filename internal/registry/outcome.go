package registry

import (
	"fmt"
	"time"
)

// Kind classifies a dispatch result.
type Kind int

const (
	// Handled means the action ran and returned nil.
	Handled Kind = iota
	// Ignored means the key is unknown or expired.
	Ignored
	// Unauthorized means the subject is not on the allow-list.
	Unauthorized
	// RateLimited means the subject exhausted the cooldown class.
	RateLimited
	// HandlerFailed means the action returned an error or panicked.
	HandlerFailed
)

func (k Kind) String() string {
	switch k {
	case Handled:
		return "handled"
	case Ignored:
		return "ignored"
	case Unauthorized:
		return "unauthorized"
	case RateLimited:
		return "rate_limited"
	case HandlerFailed:
		return "handler_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is what Dispatch returns. ResetAt is set for RateLimited, Err for
// HandlerFailed.
type Outcome struct {
	Kind    Kind
	ResetAt time.Time
	Err     error
}

func (o Outcome) String() string {
	switch o.Kind {
	case RateLimited:
		return fmt.Sprintf("%s(reset_at=%s)", o.Kind, o.ResetAt.Format(time.RFC3339))
	case HandlerFailed:
		return fmt.Sprintf("%s(%v)", o.Kind, o.Err)
	default:
		return o.Kind.String()
	}
}

// PanicError carries a recovered action panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("action panicked: %v", p.Value)
}

// Observer receives dispatch results and table size changes.
type Observer interface {
	ObserveDispatch(Kind)
	ObserveSize(live int)
}
