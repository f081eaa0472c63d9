package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/parley/pkg/connectors/slack"
	"github.com/tzrikka/parley/pkg/etcd"
	"github.com/tzrikka/parley/pkg/http"
	"github.com/tzrikka/parley/pkg/thrippy"
	"github.com/tzrikka/xdg"
)

const (
	ConfigDirName  = "parley"
	ConfigFileName = "config.toml"
)

func main() {
	// Optional local overrides, e.g. secrets in a development setup.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Caller().Msg("failed to load .env file")
	}

	buildInfo, _ := debug.ReadBuildInfo()
	configFilePath := configFile()

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "simple setup, but unsafe for production",
		},
	}
	flags = append(flags, http.Flags(configFilePath)...)
	flags = append(flags, thrippy.Flags(configFilePath)...)
	flags = append(flags, etcd.Flags(configFilePath)...)
	flags = append(flags, slack.Flags(configFilePath)...)

	cmd := &cli.Command{
		Name:    "parley",
		Usage:   "Chat bot that receives Slack events over HTTP webhooks and Socket Mode",
		Version: buildInfo.Main.Version,
		Flags:   flags,
		Action:  http.Start,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// configFile returns the path to the app's configuration file.
// It also creates an empty file if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, ConfigDirName, ConfigFileName)
	if err != nil {
		log.Fatal().Err(err).Caller().Send()
	}
	return altsrc.StringSourcer(path)
}
