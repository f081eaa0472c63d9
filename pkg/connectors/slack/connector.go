package slack

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/tzrikka/parley/pkg/events"
	"github.com/tzrikka/parley/pkg/knownusers"
)

const (
	DefaultName = "slack"
)

var (
	ErrMissingUserID = errors.New("missing user ID")

	mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)
)

// API is the subset of the [slack.Client] methods that the connector uses.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)

	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	AddPinContext(ctx context.Context, channel string, item slack.ItemRef) error
	RemovePinContext(ctx context.Context, channel string, item slack.ItemRef) error
	RenameConversationContext(ctx context.Context, channelID, channelName string) (*slack.Channel, error)
	ArchiveConversationContext(ctx context.Context, channelID string) error
}

type Config struct {
	Name          string // Defaults to [DefaultName].
	BotToken      string // "xoxb-..."
	AppToken      string // "xapp-...", required only for Socket Mode.
	SigningSecret string // Optional: if set, webhook requests must be signed.
	APIURL        string // Optional: override the Slack API base URL.
}

// Connector converts Slack payloads into [events.Event]s, hands them over to
// an [events.Parser], and sends events back to Slack. It caches the Slack
// users that events refer to in a [knownusers.Store].
type Connector struct {
	name          string
	client        *slack.Client
	api           API
	signingSecret string
	appToken      string

	users   knownusers.Store
	parser  events.Parser
	creator *EventCreator

	// Initialized by [Connector.Connect].
	botUserID string
	botID     string
}

func New(cfg Config, users knownusers.Store, parser events.Parser) *Connector {
	var opts []slack.Option
	if cfg.AppToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(cfg.AppToken))
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if users == nil {
		users = knownusers.NewMemory()
	}

	client := slack.New(cfg.BotToken, opts...)
	c := &Connector{
		name:          cfg.Name,
		client:        client,
		api:           client,
		signingSecret: cfg.SigningSecret,
		appToken:      cfg.AppToken,
		users:         users,
		parser:        parser,
	}
	c.creator = NewEventCreator(c)

	return c
}

func (c *Connector) Name() string {
	return c.name
}

// EventCreator returns the connector's converter of Slack payloads into events.
func (c *Connector) EventCreator() *EventCreator {
	return c.creator
}

// Connect checks the connector's bot token, and remembers the bot's
// identity in order to ignore messages that the bot itself sent.
func (c *Connector) Connect(ctx context.Context) error {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("Slack auth test failed: %w", err)
	}

	c.botUserID = resp.UserID
	c.botID = resp.BotID

	zerolog.Ctx(ctx).Info().Str("connector", c.name).Str("team", resp.Team).
		Str("bot_user_id", c.botUserID).Str("bot_id", c.botID).Msg("connected to Slack")
	return nil
}

// LookupUser returns the details of a Slack user, from the connector's
// known-users cache, or from the Slack API if the user isn't cached yet.
func (c *Connector) LookupUser(ctx context.Context, id string) (knownusers.User, error) {
	if id == "" {
		return knownusers.User{}, ErrMissingUserID
	}

	l := zerolog.Ctx(ctx)
	cached, err := c.users.Get(ctx, id)
	if err != nil {
		l.Warn().Err(err).Str("user_id", id).Msg("failed to read known user, falling back to Slack API")
	}
	if u, ok := cached.Get(); ok {
		return u, nil
	}

	info, err := c.api.GetUserInfoContext(ctx, id)
	if err != nil {
		return knownusers.User{}, fmt.Errorf("failed to look up Slack user %q: %w", id, err)
	}

	u := knownUser(info)
	if u.ID == "" {
		u.ID = id
	}
	if err := c.users.Put(ctx, u); err != nil {
		l.Warn().Err(err).Str("user_id", id).Msg("failed to cache known user")
	}

	return u, nil
}

// ReplaceUserMentions replaces Slack user mentions ("<@U123>")
// with user names ("@name"). Unresolvable mentions remain unchanged.
func (c *Connector) ReplaceUserMentions(ctx context.Context, text string) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(mention string) string {
		id := mentionPattern.FindStringSubmatch(mention)[1]
		u, err := c.LookupUser(ctx, id)
		if err != nil || u.Name == "" {
			return mention
		}
		return "@" + u.Name
	})
}

func knownUser(u *slack.User) knownusers.User {
	return knownusers.User{ID: u.ID, Name: u.Name, RealName: u.RealName}
}
