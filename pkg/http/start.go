package http

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/parley/pkg/bus"
	"github.com/tzrikka/parley/pkg/connectors"
	"github.com/tzrikka/parley/pkg/connectors/slack"
	"github.com/tzrikka/parley/pkg/etcd"
	"github.com/tzrikka/parley/pkg/skills"
	"github.com/tzrikka/parley/pkg/thrippy"
)

// Start initializes Parley's logging, backend clients, Slack
// connector, and HTTP server. This is blocking, to keep the bot running.
func Start(ctx context.Context, cmd *cli.Command) error {
	initLog(cmd.Bool("dev"))
	ctx = log.Logger.WithContext(ctx)

	secrets, err := slackSecrets(ctx, cmd)
	if err != nil {
		return err
	}

	users, closeUsers, err := etcd.KnownUsersStore(cmd)
	if err != nil {
		log.Err(err).Msg("failed to initialize etcd client")
		return err
	}
	defer closeUsers()

	b := bus.New()
	c := slack.New(slack.ConfigFromFlags(cmd, secrets), users, b)
	if err := c.Connect(ctx); err != nil {
		log.Err(err).Msg("failed to connect to Slack")
		return err
	}

	b.Register(skills.Log())
	b.Register(skills.Ping(c))

	r := connectors.NewRegistry()
	if err := r.Register(c.Name(), c.WebhookHandler); err != nil {
		return err
	}
	log.Info().Strs("connectors", r.Names()).Msg("registered webhook connectors")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cmd.Bool("slack-socket-mode") {
		go func() {
			if err := c.RunSocketMode(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Err(err).Msg("Slack Socket Mode client stopped")
			}
		}()
	}

	return newHTTPServer(cmd, r).run(ctx)
}

// initLog initializes the logger for the Parley server,
// based on whether it's running in development mode or not.
func initLog(devMode bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if !devMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()

	log.Warn().Msg("********** DEV MODE - UNSAFE IN PRODUCTION! **********")
}

// slackSecrets returns the Slack app's credentials from a Thrippy link, if one is
// configured. Otherwise the connector uses the credentials in the CLI flags.
func slackSecrets(ctx context.Context, cmd *cli.Command) (map[string]string, error) {
	linkID := cmd.String("thrippy-link-id")
	if linkID == "" {
		return nil, nil
	}

	l := log.With().Str("link_id", linkID).Logger()
	template, secrets, err := thrippy.LinkData(l.WithContext(ctx), cmd.String("thrippy-server-addr"), thrippy.SecureCreds(cmd), linkID)
	if err != nil {
		l.Err(err).Msg("failed to get link data from Thrippy over gRPC")
		return nil, err
	}
	if template == "" {
		l.Error().Msg("Thrippy link not found")
		return nil, fmt.Errorf("Thrippy link %q not found", linkID)
	}
	if !strings.HasPrefix(template, "slack") {
		l.Warn().Str("template", template).Msg("unexpected Thrippy link template for the Slack connector")
	}

	return secrets, nil
}
