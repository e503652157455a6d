package cmd

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicate = errors.New("cmd: command already registered")
	ErrNoName    = errors.New("cmd: command has no name")
)

// Registry stores commands by name. Lookup only; adapters do the dispatch.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

func (r *Registry) Register(c Command) error {
	name := c.Name()
	if name == "" {
		return ErrNoName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.commands[name] = c
	return nil
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// All returns every command sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
