// Package flows packages the interactive patterns commands keep repeating
// on top of the action registry: a confirm/cancel pair, a paginated menu, a
// timed proposal and a per-command cooldown gate. Nothing here talks to the
// gateway; the callbacks receive whatever payload the dispatcher passes.
package flows

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultConfirmTTL  = 30 * time.Second
	DefaultProposalTTL = 60 * time.Second
	DefaultMenuTTL     = 300 * time.Second
)

var (
	ErrMenuExpired  = errors.New("flows: menu expired")
	ErrProposalGone = errors.New("flows: proposal no longer pending")
	ErrNoPages      = errors.New("flows: menu needs at least one page")
	ErrNilCallback  = errors.New("flows: callback is nil")
)

// NewKey returns a fresh control key under prefix.
func NewKey(prefix string) string {
	return prefix + ":" + uuid.NewString()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
