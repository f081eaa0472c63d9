// Package knownusers caches the identities of chat users, so connectors
// don't need to query the chat service's API every time an event refers
// to a user ID. Entries are never evicted: user IDs are stable, and
// display name changes are rare enough to tolerate until a restart.
package knownusers

import (
	"context"
	"sync"

	"github.com/samber/mo"
)

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name,omitempty"`
}

// Store is safe for concurrent use. If multiple callers
// store the same user ID, the last writer wins.
type Store interface {
	Get(ctx context.Context, id string) (mo.Option[User], error)
	Put(ctx context.Context, u User) error
}

// Memory is a [Store] which is local to the current process.
type Memory struct {
	users sync.Map
}

func NewMemory(users ...User) *Memory {
	m := &Memory{}
	for _, u := range users {
		m.users.Store(u.ID, u)
	}
	return m
}

func (m *Memory) Get(_ context.Context, id string) (mo.Option[User], error) {
	if u, ok := m.users.Load(id); ok {
		return mo.Some(u.(User)), nil
	}
	return mo.None[User](), nil
}

func (m *Memory) Put(_ context.Context, u User) error {
	m.users.Store(u.ID, u)
	return nil
}
