package slack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/tzrikka/parley/pkg/events"
)

// Inner event types of Events API callbacks: https://docs.slack.dev/reference/events.
const (
	eventMessage          = "message"
	eventChannelCreated   = "channel_created"
	eventChannelArchive   = "channel_archive"
	eventChannelUnarchive = "channel_unarchive"
	eventChannelRename    = "channel_rename"
	eventTeamJoin         = "team_join"
	eventPinAdded         = "pin_added"
	eventPinRemoved       = "pin_removed"
	eventReactionAdded    = "reaction_added"
)

// Message subtypes: https://docs.slack.dev/reference/events/message#subtypes.
const (
	subtypeMessage        = "message"
	subtypeBotMessage     = "bot_message"
	subtypeMessageChanged = "message_changed"
	subtypeChannelJoin    = "channel_join"
)

// Block element types: https://docs.slack.dev/reference/block-kit/block-elements.
const (
	elementButton            = "button"
	elementOverflow          = "overflow"
	elementStaticSelect      = "static_select"
	elementDatePicker        = "datepicker"
	elementMultiStaticSelect = "multi_static_select"
)

// payloadHeader is the part of all Slack payloads (Events API
// callbacks, interactions, URL verification) that determines their type.
type payloadHeader struct {
	Type      string          `json:"type"`
	Event     json.RawMessage `json:"event,omitempty"`
	Challenge string          `json:"challenge,omitempty"`
}

// innerEventHeader is the part of all Events API
// inner events that determines how to process them.
type innerEventHeader struct {
	Type    string `json:"type"`
	SubType string `json:"subtype,omitempty"`
	EventTS string `json:"event_ts,omitempty"`
}

type (
	callbackFunc    func(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error)
	messageFunc     func(ctx context.Context, ev *slackevents.MessageEvent) events.Event
	interactionFunc func(ctx context.Context, cb *slack.InteractionCallback) []events.Event
)

// EventCreator converts Slack payloads into [events.Event]s. Payloads that refer to
// Slack users are enriched with user names, using the connector's known-users cache.
type EventCreator struct {
	connector *Connector

	eventTypes       map[string]callbackFunc
	messageSubtypes  map[string]messageFunc
	interactionTypes map[slack.InteractionType]interactionFunc
}

func NewEventCreator(c *Connector) *EventCreator {
	ec := &EventCreator{connector: c}

	ec.eventTypes = map[string]callbackFunc{
		eventMessage:          ec.createRoomMessage,
		eventChannelCreated:   ec.createNewRoom,
		eventChannelArchive:   ec.archiveRoom,
		eventChannelUnarchive: ec.unarchiveRoom,
		eventChannelRename:    ec.renameRoom,
		eventTeamJoin:         ec.createJoinGroup,
		eventPinAdded:         ec.pinMessage,
		eventPinRemoved:       ec.unpinMessage,
		eventReactionAdded:    ec.createReaction,
	}

	// Unlisted subtypes are treated as regular messages.
	ec.messageSubtypes = map[string]messageFunc{
		subtypeMessage:        ec.createMessageEvent,
		subtypeBotMessage:     ec.handleBotMessage,
		subtypeMessageChanged: ec.editMessageEvent,
		subtypeChannelJoin:    ec.handleChannelJoin,
	}

	ec.interactionTypes = map[slack.InteractionType]interactionFunc{
		slack.InteractionTypeBlockActions:   ec.blockActionsTriggered,
		slack.InteractionTypeMessageAction:  ec.messageActionTriggered,
		slack.InteractionTypeViewSubmission: ec.viewSubmissionTriggered,
		slack.InteractionTypeViewClosed:     ec.viewClosedTriggered,
	}

	return ec
}

// CreateEvents converts a JSON Slack payload into zero or more events.
// Unknown and unsupported payload types are not errors: they
// simply don't produce events. Malformed JSON is an error.
func (ec *EventCreator) CreateEvents(ctx context.Context, payload []byte) ([]events.Event, error) {
	h := payloadHeader{}
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("failed to parse Slack payload: %w", err)
	}

	l := zerolog.Ctx(ctx)
	switch h.Type {
	case string(slackevents.CallbackEvent):
		return ec.createCallbackEvents(ctx, h.Event)
	case string(slackevents.URLVerification):
		return nil, nil
	}

	f, ok := ec.interactionTypes[slack.InteractionType(h.Type)]
	if !ok {
		l.Debug().Str("payload_type", h.Type).Msg("ignoring unsupported Slack payload type")
		return nil, nil
	}

	cb := &slack.InteractionCallback{}
	if err := json.Unmarshal(payload, cb); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s payload: %w", h.Type, err)
	}

	return f(ctx, cb), nil
}

func (ec *EventCreator) createCallbackEvents(ctx context.Context, raw json.RawMessage) ([]events.Event, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing inner event in Slack event callback")
	}

	h := innerEventHeader{}
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("failed to parse Slack inner event: %w", err)
	}

	f, ok := ec.eventTypes[h.Type]
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("event_type", h.Type).Msg("ignoring unsupported Slack event type")
		return nil, nil
	}

	return f(ctx, h, raw)
}

// UserName returns the display name of a Slack user, or an empty string
// if the ID is empty or the user can't be resolved. It doesn't fail.
func (ec *EventCreator) UserName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}

	u, err := ec.connector.LookupUser(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Slack user name lookup failed")
		return ""
	}

	return u.Name
}

func (ec *EventCreator) base(id, target string) events.Base {
	if id == "" {
		id = events.NewID()
	}
	return events.Base{ID: id, Connector: ec.connector.name, Target: target}
}

func one(e events.Event) []events.Event {
	if e == nil {
		return nil
	}
	return []events.Event{e}
}

func (ec *EventCreator) createRoomMessage(ctx context.Context, _ innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &slackevents.MessageEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack message event: %w", err)
	}

	f, ok := ec.messageSubtypes[ev.SubType]
	if !ok {
		f = ec.createMessageEvent
	}

	return one(f(ctx, ev)), nil
}

// CreateMessage converts a Slack message event into a [events.Message].
// It returns nil if the message's author can't be resolved.
func (ec *EventCreator) CreateMessage(ctx context.Context, ev *slackevents.MessageEvent) *events.Message {
	if ev == nil {
		return nil
	}

	name := ec.UserName(ctx, ev.User)
	if name == "" {
		return nil
	}

	m := &events.Message{
		Base: ec.base(ev.TimeStamp, ev.Channel),
		Text: ec.connector.ReplaceUserMentions(ctx, ev.Text),
	}
	m.User = name
	m.UserID = ev.User
	m.LinkedEventID = ev.ThreadTimeStamp
	m.Raw = ev

	return m
}

// EditMessage converts a Slack "message_changed" event into a [events.EditedMessage].
// It returns nil if the edited message or its author can't be resolved.
func (ec *EventCreator) EditMessage(ctx context.Context, ev *slackevents.MessageEvent) *events.EditedMessage {
	if ev == nil || ev.Message == nil {
		return nil
	}

	name := ec.UserName(ctx, ev.Message.User)
	if name == "" {
		return nil
	}

	m := &events.EditedMessage{
		Base: ec.base(ev.TimeStamp, ev.Channel),
		Text: ec.connector.ReplaceUserMentions(ctx, ev.Message.Text),
	}
	m.User = name
	m.UserID = ev.Message.User
	m.LinkedEventID = ev.Message.Timestamp
	m.Raw = ev

	return m
}

// createMessageEvent and editMessageEvent are needed to avoid
// non-nil [events.Event] interfaces that wrap nil pointers.
func (ec *EventCreator) createMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) events.Event {
	if m := ec.CreateMessage(ctx, ev); m != nil {
		return m
	}
	return nil
}

func (ec *EventCreator) editMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) events.Event {
	if m := ec.EditMessage(ctx, ev); m != nil {
		return m
	}
	return nil
}

// handleBotMessage ignores messages that this connector's bot sent.
func (ec *EventCreator) handleBotMessage(ctx context.Context, ev *slackevents.MessageEvent) events.Event {
	if ev.BotID != "" && ev.BotID == ec.connector.botID {
		return nil
	}
	return ec.createMessageEvent(ctx, ev)
}

func (ec *EventCreator) handleChannelJoin(ctx context.Context, ev *slackevents.MessageEvent) events.Event {
	id := ev.EventTimeStamp
	if id == "" {
		id = ev.TimeStamp
	}

	e := &events.JoinRoom{Base: ec.base(id, ev.Channel)}
	e.UserID = ev.User
	e.User = ec.UserName(ctx, ev.User)
	e.Raw = ev

	return e
}

func (ec *EventCreator) createNewRoom(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &slackevents.ChannelCreatedEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	e := &events.NewRoom{Base: ec.base(h.EventTS, ev.Channel.ID), Name: ev.Channel.Name}
	e.UserID = ev.Channel.Creator
	e.User = ec.UserName(ctx, ev.Channel.Creator)
	e.Raw = ev

	return one(e), nil
}

func (ec *EventCreator) archiveRoom(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &slackevents.ChannelArchiveEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	e := &events.ChannelArchived{Base: ec.base(h.EventTS, ev.Channel)}
	e.UserID = ev.User
	e.User = ec.UserName(ctx, ev.User)
	e.Raw = ev

	return one(e), nil
}

func (ec *EventCreator) unarchiveRoom(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &slackevents.ChannelUnarchiveEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	e := &events.ChannelUnarchived{Base: ec.base(h.EventTS, ev.Channel)}
	e.UserID = ev.User
	e.User = ec.UserName(ctx, ev.User)
	e.Raw = ev

	return one(e), nil
}

func (ec *EventCreator) renameRoom(_ context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &slackevents.ChannelRenameEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	e := &events.RoomName{Base: ec.base(h.EventTS, ev.Channel.ID), Name: ev.Channel.Name}
	e.Raw = ev

	return one(e), nil
}

type teamJoinEvent struct {
	User slack.User `json:"user"`
}

// createJoinGroup also caches the new team member, since
// it's very likely that events about them will follow.
func (ec *EventCreator) createJoinGroup(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &teamJoinEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	if ev.User.ID != "" && ev.User.Name != "" {
		u := knownUser(&ev.User)
		if err := ec.connector.users.Put(ctx, u); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", u.ID).Msg("failed to cache known user")
		}
	}

	e := &events.JoinGroup{Base: ec.base(h.EventTS, ev.User.TeamID)}
	e.UserID = ev.User.ID
	e.User = ev.User.Name
	e.Raw = ev

	return one(e), nil
}

// pinEvent is based on https://docs.slack.dev/reference/events/pin_added
// and https://docs.slack.dev/reference/events/pin_removed.
type pinEvent struct {
	User      string `json:"user"`
	ChannelID string `json:"channel_id"`
	Item      struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		Message *struct {
			TS   string `json:"ts"`
			Text string `json:"text"`
			User string `json:"user"`
		} `json:"message,omitempty"`
	} `json:"item"`
}

func (ec *EventCreator) parsePinEvent(ctx context.Context, h innerEventHeader, raw json.RawMessage) (events.Base, error) {
	ev := &pinEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return events.Base{}, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	target := ev.ChannelID
	if target == "" {
		target = ev.Item.Channel
	}

	b := ec.base(h.EventTS, target)
	b.UserID = ev.User
	b.User = ec.UserName(ctx, ev.User)
	if ev.Item.Message != nil {
		b.LinkedEventID = ev.Item.Message.TS
	}
	b.Raw = ev

	return b, nil
}

func (ec *EventCreator) pinMessage(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	b, err := ec.parsePinEvent(ctx, h, raw)
	if err != nil {
		return nil, err
	}
	return one(&events.PinMessage{Base: b}), nil
}

func (ec *EventCreator) unpinMessage(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	b, err := ec.parsePinEvent(ctx, h, raw)
	if err != nil {
		return nil, err
	}
	return one(&events.UnpinMessage{Base: b}), nil
}

func (ec *EventCreator) createReaction(ctx context.Context, h innerEventHeader, raw json.RawMessage) ([]events.Event, error) {
	ev := &slackevents.ReactionAddedEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("failed to parse Slack %s event: %w", h.Type, err)
	}

	e := &events.Reaction{Base: ec.base(h.EventTS, ev.Item.Channel), Emoji: ev.Reaction}
	e.UserID = ev.User
	e.User = ec.UserName(ctx, ev.User)
	e.LinkedEventID = ev.Item.Timestamp
	e.Raw = ev

	return one(e), nil
}

// interactionBase returns the common fields of events that are based on
// interactions. Interactions in views (modals and the App Home tab)
// don't have a channel, so they are scoped to the interacting user.
func (ec *EventCreator) interactionBase(ctx context.Context, cb *slack.InteractionCallback) events.Base {
	target := cb.Channel.ID
	if target == "" {
		target = cb.User.ID
	}

	b := ec.base("", target)
	b.UserID = cb.User.ID
	b.User = cb.User.Name
	if b.User == "" {
		b.User = ec.UserName(ctx, cb.User.ID)
	}
	b.Raw = cb

	return b
}

// blockActionsTriggered creates a separate event for each action in the payload.
func (ec *EventCreator) blockActionsTriggered(ctx context.Context, cb *slack.InteractionCallback) []events.Event {
	var es []events.Event
	for _, a := range cb.ActionCallback.BlockActions {
		if a == nil {
			continue
		}

		e := &events.BlockAction{
			Base:       ec.interactionBase(ctx, cb),
			ActionID:   a.ActionID,
			BlockID:    a.BlockID,
			ActionType: string(a.Type),
		}
		if v := blockActionValue(a); v != nil {
			e.UpdateEntity("value", v)
		}

		es = append(es, e)
	}
	return es
}

// blockActionValue returns the value that the user selected in a block element,
// or nil if the element type isn't supported, or no value was selected.
func blockActionValue(a *slack.BlockAction) any {
	switch string(a.Type) {
	case elementButton:
		if a.Value != "" {
			return a.Value
		}
	case elementOverflow, elementStaticSelect:
		if a.SelectedOption.Value != "" {
			return a.SelectedOption.Value
		}
	case elementDatePicker:
		if a.SelectedDate != "" {
			return a.SelectedDate
		}
	case elementMultiStaticSelect:
		if len(a.SelectedOptions) > 0 {
			vs := make([]string, 0, len(a.SelectedOptions))
			for _, o := range a.SelectedOptions {
				vs = append(vs, o.Value)
			}
			return vs
		}
	}
	return nil
}

func (ec *EventCreator) messageActionTriggered(ctx context.Context, cb *slack.InteractionCallback) []events.Event {
	e := &events.MessageAction{Base: ec.interactionBase(ctx, cb), CallbackID: cb.CallbackID}
	e.LinkedEventID = cb.Message.Timestamp
	return one(e)
}

func (ec *EventCreator) viewSubmissionTriggered(ctx context.Context, cb *slack.InteractionCallback) []events.Event {
	e := &events.ViewSubmission{Base: ec.interactionBase(ctx, cb), CallbackID: cb.View.CallbackID, ViewID: cb.View.ID}
	e.Target = cb.User.ID // Even if the view was opened from a channel.
	if vs := viewStateValues(cb.View.State); len(vs) > 0 {
		e.UpdateEntity("values", vs)
	}
	return one(e)
}

func (ec *EventCreator) viewClosedTriggered(ctx context.Context, cb *slack.InteractionCallback) []events.Event {
	e := &events.ViewClosed{Base: ec.interactionBase(ctx, cb), CallbackID: cb.View.CallbackID, ViewID: cb.View.ID}
	e.Target = cb.User.ID
	return one(e)
}

// viewStateValues flattens the input values in a submitted view
// into a map of action IDs to the values that the user selected.
func viewStateValues(s *slack.ViewState) map[string]any {
	if s == nil {
		return nil
	}

	vs := map[string]any{}
	for _, block := range s.Values {
		for actionID, a := range block {
			if v := blockActionValue(&a); v != nil {
				vs[actionID] = v
			} else if a.Value != "" {
				vs[actionID] = a.Value // Plain text inputs.
			}
		}
	}
	return vs
}
