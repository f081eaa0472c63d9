package knownusers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	DefaultEtcdPrefix = "/parley/known_users/"

	timeout = 3 * time.Second
)

// Etcd is a [Store] which is shared by all the
// processes that are connected to the same etcd cluster.
type Etcd struct {
	kv     clientv3.KV
	prefix string
}

func NewEtcd(kv clientv3.KV, prefix string) *Etcd {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Etcd{kv: kv, prefix: prefix}
}

func (s *Etcd) key(id string) string {
	return s.prefix + id
}

func (s *Etcd) Get(ctx context.Context, id string) (mo.Option[User], error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		return mo.None[User](), fmt.Errorf("failed to read user from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return mo.None[User](), nil
	}

	u := User{}
	if err := json.Unmarshal(resp.Kvs[0].Value, &u); err != nil {
		return mo.None[User](), fmt.Errorf("failed to parse user %q from etcd: %w", id, err)
	}

	return mo.Some(u), nil
}

func (s *Etcd) Put(ctx context.Context, u User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to serialize user %q: %w", u.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.kv.Put(ctx, s.key(u.ID), string(b)); err != nil {
		return fmt.Errorf("failed to write user to etcd: %w", err)
	}

	return nil
}
