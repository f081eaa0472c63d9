package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/tzrikka/parley/pkg/events"
)

var ErrUnsupportedEvent = errors.New("unsupported event kind")

// Send performs the Slack API call that corresponds to the given event.
// The event's target is the Slack channel ID, and its linked event ID
// (if relevant) is the timestamp of the message that it refers to.
func (c *Connector) Send(ctx context.Context, e events.Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedEvent)
	}

	m := e.Meta()
	ref := slack.NewRefToMessage(m.Target, m.LinkedEventID)

	var err error
	switch e := e.(type) {
	case *events.Message:
		opts := []slack.MsgOption{slack.MsgOptionText(e.Text, false)}
		if m.LinkedEventID != "" {
			opts = append(opts, slack.MsgOptionTS(m.LinkedEventID))
		}
		_, _, err = c.api.PostMessageContext(ctx, m.Target, opts...)

	case *events.EditedMessage:
		_, _, _, err = c.api.UpdateMessageContext(ctx, m.Target, m.LinkedEventID, slack.MsgOptionText(e.Text, false))

	case *events.Reaction:
		err = c.api.AddReactionContext(ctx, strings.Trim(e.Emoji, ":"), ref)

	case *events.PinMessage:
		err = c.api.AddPinContext(ctx, m.Target, ref)

	case *events.UnpinMessage:
		err = c.api.RemovePinContext(ctx, m.Target, ref)

	case *events.RoomName:
		_, err = c.api.RenameConversationContext(ctx, m.Target, e.Name)

	case *events.ChannelArchived:
		err = c.api.ArchiveConversationContext(ctx, m.Target)

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, e.Kind())
	}

	if err != nil {
		return fmt.Errorf("failed to send %s event to Slack: %w", e.Kind(), err)
	}
	return nil
}
