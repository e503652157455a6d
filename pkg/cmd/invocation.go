// Package cmd is the transport-neutral command core. A command has a name, a
// description and a Run; the Discord adapter decides how it is registered
// and what it finds in Invocation.Data.
package cmd

import "context"

// Invocation is one call of a command.
type Invocation struct {
	// Subject is the user who invoked the command.
	Subject string
	// Scope is where it was invoked (a guild ID, empty for direct messages).
	Scope string
	// Data carries the adapter's own context.
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
