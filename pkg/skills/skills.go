// Package skills contains the built-in skills of the Parley bot.
package skills

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tzrikka/parley/pkg/bus"
	"github.com/tzrikka/parley/pkg/events"
)

// Sender sends events back to the chat service that a connector represents.
type Sender interface {
	Send(ctx context.Context, e events.Event) error
}

// Log reports every event that the bot receives.
func Log() bus.Skill {
	return bus.Skill{
		Name: "log",
		Run: func(ctx context.Context, e events.Event) error {
			m := e.Meta()
			zerolog.Ctx(ctx).Info().Str("event_kind", e.Kind()).Str("event_id", m.ID).
				Str("connector", m.Connector).Str("target", m.Target).Str("user", m.User).
				Any("entities", m.Entities).Msg("received event")
			return nil
		},
	}
}

// Ping replies "pong" (in a thread) to messages that are exactly "ping".
func Ping(s Sender) bus.Skill {
	return bus.Skill{
		Name: "ping",
		Match: func(e events.Event) bool {
			m, ok := e.(*events.Message)
			return ok && strings.EqualFold(strings.TrimSpace(m.Text), "ping")
		},
		Run: func(ctx context.Context, e events.Event) error {
			m := e.Meta()
			reply := &events.Message{
				Base: events.Base{
					ID:            events.NewID(),
					Connector:     m.Connector,
					Target:        m.Target,
					LinkedEventID: thread(m),
				},
				Text: "pong",
			}
			return s.Send(ctx, reply)
		},
	}
}

// thread returns the ID of the thread that a reply to the given event
// should be posted in: the event's own thread, or a new one under it.
func thread(m *events.Base) string {
	if m.LinkedEventID != "" {
		return m.LinkedEventID
	}
	return m.ID
}
