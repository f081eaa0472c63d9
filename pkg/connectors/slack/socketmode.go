package slack

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack/socketmode"
)

var ErrMissingAppToken = errors.New("Socket Mode requires an app-level token")

type acker interface {
	Ack(req socketmode.Request, payload ...any)
}

// RunSocketMode receives events and interaction payloads over a Socket Mode
// WebSocket connection, instead of HTTP webhooks. This is blocking, until
// the context is canceled or the client fails to (re)connect.
// See https://docs.slack.dev/apis/events-api/using-socket-mode.
func (c *Connector) RunSocketMode(ctx context.Context) error {
	if c.appToken == "" {
		return ErrMissingAppToken
	}

	sm := socketmode.New(c.client)
	go c.relaySocketModeEvents(ctx, sm, sm.Events)

	return sm.RunContext(ctx)
}

// relaySocketModeEvents runs as a goroutine, to handle Socket Mode events
// until the context is canceled or the client closes its event channel.
func (c *Connector) relaySocketModeEvents(ctx context.Context, a acker, evts <-chan socketmode.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-evts:
			if !ok {
				return
			}
			c.handleSocketModeEvent(ctx, a, evt)
		}
	}
}

func (c *Connector) handleSocketModeEvent(ctx context.Context, a acker, evt socketmode.Event) {
	l := zerolog.Ctx(ctx).With().Str("connector", c.name).Str("link_medium", "websocket").
		Str("socket_mode_event", string(evt.Type)).Logger()

	switch evt.Type {
	case socketmode.EventTypeConnecting, socketmode.EventTypeConnected, socketmode.EventTypeHello:
		l.Debug().Msg("Socket Mode connection status")
		return
	case socketmode.EventTypeConnectionError, socketmode.EventTypeIncomingError, socketmode.EventTypeErrorBadMessage:
		l.Warn().Any("data", evt.Data).Msg("Socket Mode error")
		return
	case socketmode.EventTypeDisconnect:
		l.Info().Msg("Slack requested a Socket Mode reconnection")
		return
	}

	if evt.Request == nil {
		l.Debug().Msg("ignoring Socket Mode event without a request")
		return
	}

	// Acknowledge immediately, just like webhooks, regardless of the payload.
	a.Ack(*evt.Request)

	switch evt.Type {
	case socketmode.EventTypeEventsAPI, socketmode.EventTypeInteractive:
		c.dispatch(l.WithContext(ctx), evt.Request.Payload)
	default:
		l.Debug().Msg("ignoring unsupported Socket Mode event")
	}
}
