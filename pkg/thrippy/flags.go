package thrippy

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	DefaultGRPCAddress = "localhost:14460"
)

// Flags defines CLI flags to configure a Thrippy gRPC client. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "thrippy-server-addr",
			Usage: "Thrippy gRPC server address",
			Value: DefaultGRPCAddress,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_ADDR"),
				toml.TOML("thrippy.server_addr", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-http-addr",
			Usage: "Thrippy HTTP server address, to pass-through OAuth callbacks (e.g. localhost:14470)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_HTTP_ADDR"),
				toml.TOML("thrippy.http_addr", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-link-id",
			Usage: "Thrippy link ID, to fetch the Slack app's credentials instead of specifying them locally",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_LINK_ID"),
				toml.TOML("thrippy.link_id", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-client-cert",
			Usage: "Thrippy gRPC client's public certificate PEM file (mTLS only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_CLIENT_CERT"),
				toml.TOML("thrippy.client_cert", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-client-key",
			Usage: "Thrippy gRPC client's private key PEM file (mTLS only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_CLIENT_KEY"),
				toml.TOML("thrippy.client_key", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-server-ca-cert",
			Usage: "Thrippy server's CA certificate PEM file (both TLS and mTLS)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_CA_CERT"),
				toml.TOML("thrippy.server_ca_cert", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-server-name-override",
			Usage: "Thrippy server's name override, for testing only (both TLS and mTLS)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_NAME_OVERRIDE"),
				toml.TOML("thrippy.server_name_override", configFilePath),
			),
		},
	}
}

// SecureCreds initializes gRPC client credentials, based on the CLI flags.
// Errors are considered critical and cause the application to exit.
func SecureCreds(cmd *cli.Command) credentials.TransportCredentials {
	if cmd.Bool("dev") {
		return insecureCreds()
	}

	caPath := cmd.String("thrippy-server-ca-cert")
	if caPath == "" {
		log.Fatal().Msg("missing Thrippy server CA certificate, required outside of dev mode")
	}

	pem, err := os.ReadFile(caPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", caPath).Msg("failed to read Thrippy server CA certificate")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		log.Fatal().Str("path", caPath).Msg("failed to parse Thrippy server CA certificate")
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		ServerName: cmd.String("thrippy-server-name-override"),
		MinVersion: tls.VersionTLS13,
	}

	// mTLS.
	certPath, keyPath := cmd.String("thrippy-client-cert"), cmd.String("thrippy-client-key")
	if certPath != "" && keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load Thrippy client certificate and key")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(cfg)
}

func insecureCreds() credentials.TransportCredentials {
	return insecure.NewCredentials()
}
