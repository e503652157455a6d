package registry

import "errors"

var (
	ErrEmptyKey             = errors.New("registry: key is empty")
	ErrNilAction            = errors.New("registry: action is nil")
	ErrInvalidTTL           = errors.New("registry: ttl must be positive")
	ErrInvalidLifetime      = errors.New("registry: unknown lifetime")
	ErrUnknownCooldownClass = errors.New("registry: unknown cooldown class")
	ErrKeyExists            = errors.New("registry: key already registered")
)
