// Package connectors routes incoming webhook requests to
// the chat connectors that are configured in the bot.
package connectors

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps connector names (the "<name>" in "/connector/<name>"
// webhook URL paths) to their webhook handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]WebhookHandlerFunc{}}
}

func (r *Registry) Register(name string, h WebhookHandlerFunc) error {
	if name == "" {
		return fmt.Errorf("missing connector name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("connector %q is already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Lookup(name string) (WebhookHandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the sorted names of all the registered connectors.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
