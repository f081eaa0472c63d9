package slack

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// Flags defines CLI flags to configure the Slack connector. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "slack-connector-name",
			Usage: "name of the Slack connector, in webhook URL paths (/connector/<name>)",
			Value: DefaultName,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_CONNECTOR_NAME"),
				toml.TOML("slack.connector_name", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-bot-token",
			Usage: "Slack bot token (xoxb-...), unless stored in a Thrippy link",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_BOT_TOKEN"),
				toml.TOML("slack.bot_token", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-app-token",
			Usage: "Slack app-level token (xapp-...), required for Socket Mode",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_APP_TOKEN"),
				toml.TOML("slack.app_token", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-signing-secret",
			Usage: "Slack signing secret, to verify incoming webhook requests",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_SIGNING_SECRET"),
				toml.TOML("slack.signing_secret", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "slack-socket-mode",
			Usage: "receive Slack events over Socket Mode in addition to HTTP webhooks",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_SOCKET_MODE"),
				toml.TOML("slack.socket_mode", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:   "slack-api-url",
			Usage:  "override the Slack API base URL",
			Hidden: true,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_API_URL"),
				toml.TOML("slack.api_url", configFilePath),
			),
		},
	}
}

// ConfigFromFlags returns the connector configuration that is defined in the CLI
// flags, with secrets overridden by the given map (e.g. from a Thrippy link).
func ConfigFromFlags(cmd *cli.Command, secrets map[string]string) Config {
	cfg := Config{
		Name:          cmd.String("slack-connector-name"),
		BotToken:      cmd.String("slack-bot-token"),
		AppToken:      cmd.String("slack-app-token"),
		SigningSecret: cmd.String("slack-signing-secret"),
		APIURL:        cmd.String("slack-api-url"),
	}

	if v := secrets["bot_token"]; v != "" {
		cfg.BotToken = v
	}
	if v := secrets["app_token"]; v != "" {
		cfg.AppToken = v
	}
	if v := secrets["signing_secret"]; v != "" {
		cfg.SigningSecret = v
	}

	return cfg
}
