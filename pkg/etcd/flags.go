package etcd

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/tzrikka/parley/pkg/knownusers"
)

const (
	dialTimeout = 5 * time.Second
)

// Flags defines CLI flags to configure an etcd gRPC client. These flags can also
// be set using environment variables and the application's configuration file.
// Without endpoint URLs, the application doesn't use etcd at all.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "etcd-endpoint-urls",
			Usage: "etcd server endpoint URLs, to share known users between replicas (e.g. http://localhost:2379)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_ENDPOINTS"),
				toml.TOML("etcd.endpoint_urls", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "etcd-known-users-prefix",
			Usage: "etcd key prefix for cached chat users",
			Value: knownusers.DefaultEtcdPrefix,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_KNOWN_USERS_PREFIX"),
				toml.TOML("etcd.known_users_prefix", configFilePath),
			),
		},
	}
}

// NewClient connects to the etcd cluster that is configured in the CLI flags.
// It returns nil, without an error, if no endpoint URLs are configured.
func NewClient(cmd *cli.Command) (*clientv3.Client, error) {
	urls := cmd.StringSlice("etcd-endpoint-urls")
	if len(urls) == 0 {
		return nil, nil
	}

	return clientv3.New(clientv3.Config{
		Endpoints:   urls,
		DialTimeout: dialTimeout,
	})
}

// KnownUsersStore returns a shared etcd-based store if etcd is configured,
// or else a store that is local to the current process. The returned
// close function must be called when the store is no longer needed.
func KnownUsersStore(cmd *cli.Command) (knownusers.Store, func(), error) {
	c, err := NewClient(cmd)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return knownusers.NewMemory(), func() {}, nil
	}

	s := knownusers.NewEtcd(c, cmd.String("etcd-known-users-prefix"))
	return s, func() { _ = c.Close() }, nil
}
