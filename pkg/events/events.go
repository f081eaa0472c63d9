// Package events defines the connector-agnostic chat events that
// connectors create from third-party payloads, and hand over to
// the bot's event pipeline (a [Parser]) for skill matching.
package events

import (
	"context"

	"github.com/lithammer/shortuuid/v4"
)

// Event is a normalized chat occurrence (a message, a reaction,
// a user joining a room, a button click, etc.).
type Event interface {
	Meta() *Base
	Kind() string
}

// Parser receives ownership of events as soon as a connector creates them.
type Parser interface {
	Parse(ctx context.Context, e Event)
}

// Base contains the fields that all event kinds share.
type Base struct {
	ID        string // Assigned by the source service if possible, otherwise see [NewID].
	Connector string // Name of the connector which created the event.
	Target    string // Room, team, or user that the event is scoped to.

	User   string // Display name.
	UserID string

	LinkedEventID string // E.g. the original message of an edit or a reaction.

	Entities map[string]any
	Raw      any // Decoded source payload.
}

// Meta returns the common fields of an event, regardless of its kind.
func (b *Base) Meta() *Base {
	return b
}

// UpdateEntity sets or replaces a named entity in the event.
func (b *Base) UpdateEntity(name string, value any) {
	if b.Entities == nil {
		b.Entities = map[string]any{}
	}
	b.Entities[name] = value
}

// NewID generates a unique ID for events whose
// source doesn't provide one (e.g. interactions).
func NewID() string {
	return shortuuid.New()
}

type Message struct {
	Base
	Text string
}

func (*Message) Kind() string { return "message" }

type EditedMessage struct {
	Base
	Text string
}

func (*EditedMessage) Kind() string { return "edited_message" }

type Reaction struct {
	Base
	Emoji string
}

func (*Reaction) Kind() string { return "reaction" }

type JoinRoom struct {
	Base
}

func (*JoinRoom) Kind() string { return "join_room" }

type NewRoom struct {
	Base
	Name string
}

func (*NewRoom) Kind() string { return "new_room" }

type RoomName struct {
	Base
	Name string
}

func (*RoomName) Kind() string { return "room_name" }

type JoinGroup struct {
	Base
}

func (*JoinGroup) Kind() string { return "join_group" }

type PinMessage struct {
	Base
}

func (*PinMessage) Kind() string { return "pin_message" }

type UnpinMessage struct {
	Base
}

func (*UnpinMessage) Kind() string { return "unpin_message" }

type ChannelArchived struct {
	Base
}

func (*ChannelArchived) Kind() string { return "channel_archived" }

type ChannelUnarchived struct {
	Base
}

func (*ChannelUnarchived) Kind() string { return "channel_unarchived" }

// BlockAction is a single interaction with an interactive component
// in a message or a view. The selected value, if any, is stored in
// the "value" entity.
type BlockAction struct {
	Base
	ActionID   string
	BlockID    string
	ActionType string
}

func (*BlockAction) Kind() string { return "block_action" }

type MessageAction struct {
	Base
	CallbackID string
}

func (*MessageAction) Kind() string { return "message_action" }

type ViewSubmission struct {
	Base
	CallbackID string
	ViewID     string
}

func (*ViewSubmission) Kind() string { return "view_submission" }

type ViewClosed struct {
	Base
	CallbackID string
	ViewID     string
}

func (*ViewClosed) Kind() string { return "view_closed" }
