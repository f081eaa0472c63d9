package http

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	DefaultWebhookPort = 14480
)

// Flags defines CLI flags to configure the HTTP server. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "webhook-port",
			Usage: "local port number for HTTP webhooks (/connector/<name>)",
			Value: DefaultWebhookPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("PARLEY_WEBHOOK_PORT"),
				toml.TOML("http.webhook_port", configFilePath),
			),
			Validator: validatePort,
		},
	}
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return cli.Exit("invalid webhook port number", 2)
	}
	return nil
}
