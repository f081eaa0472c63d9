// Package bus is a minimal in-process event pipeline: connectors hand over
// the events they create, and the bus runs every skill that matches them.
package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tzrikka/parley/pkg/events"
)

// Skill is a named event handler, which runs only for events that it matches.
type Skill struct {
	Name  string
	Match func(events.Event) bool
	Run   func(ctx context.Context, e events.Event) error
}

// Bus implements [events.Parser].
type Bus struct {
	mu     sync.RWMutex
	skills []Skill
}

func New() *Bus {
	return &Bus{}
}

// Register adds a skill to the bus. Skills without a match
// function match all events, skills without a run function are ignored.
func (b *Bus) Register(s Skill) {
	if s.Run == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.skills = append(b.skills, s)
}

// Parse runs all the skills that match the given event, in registration order.
// Skill errors are logged, they don't stop other skills from running.
func (b *Bus) Parse(ctx context.Context, e events.Event) {
	if e == nil {
		return
	}

	l := zerolog.Ctx(ctx).With().Str("event_kind", e.Kind()).Str("event_id", e.Meta().ID).Logger()
	l.Debug().Str("connector", e.Meta().Connector).Msg("parsing event")

	b.mu.RLock()
	skills := make([]Skill, len(b.skills))
	copy(skills, b.skills)
	b.mu.RUnlock()

	for _, s := range skills {
		if s.Match != nil && !s.Match(e) {
			continue
		}
		if err := s.Run(ctx, e); err != nil {
			l.Err(err).Str("skill", s.Name).Msg("skill failed")
		}
	}
}

// MatchKinds returns a skill match function for specific event kinds.
func MatchKinds(kinds ...string) func(events.Event) bool {
	return func(e events.Event) bool {
		for _, k := range kinds {
			if e.Kind() == k {
				return true
			}
		}
		return false
	}
}
