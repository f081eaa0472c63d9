package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/slack-go/slack/slacktest"

	"github.com/tzrikka/parley/pkg/connectors"
	"github.com/tzrikka/parley/pkg/events"
	"github.com/tzrikka/parley/pkg/knownusers"
)

const (
	testBotUserID = "U01NLAKRJ4W"
	testBotID     = "B01NLAKRJ4X"
)

// testUsers are the users that the mock Slack API knows about.
var testUsers = map[string]string{
	"U01NK1K9L68": "Test User",
	"U01P7131BA4": "Another User",
}

// recorder is an [events.Parser] which remembers the events that it receives.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Parse(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// mockAPI is a Slack API server that supports the "auth.test" and "users.info" methods,
// and records the calls to other methods (which are used to send events).
type mockAPI struct {
	server      *slacktest.Server
	userLookups atomic.Int32

	mu    sync.Mutex
	calls []apiCall
}

type apiCall struct {
	method string
	form   url.Values
}

func newMockAPI(t *testing.T) *mockAPI {
	t.Helper()

	m := &mockAPI{}
	m.server = slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/auth.test", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"ok": true, "url": "https://parley-test.slack.com/", "team": "Test Team",
				"user": "parley", "team_id": "T01N5Q7AFS8", "user_id": %q, "bot_id": %q}`, testBotUserID, testBotID)
		})

		c.Handle("/users.info", func(w http.ResponseWriter, r *http.Request) {
			m.userLookups.Add(1)
			_ = r.ParseForm()
			id := r.FormValue("user")

			w.Header().Set("Content-Type", "application/json")
			name, ok := testUsers[id]
			if !ok {
				_, _ = w.Write([]byte(`{"ok": false, "error": "user_not_found"}`))
				return
			}
			_, _ = fmt.Fprintf(w, `{"ok": true, "user": {"id": %q, "team_id": "T01N5Q7AFS8",
				"name": %q, "real_name": %q, "profile": {"real_name": %q}}}`, id, name, name, name)
		})

		for _, method := range []string{"chat.postMessage", "chat.update", "reactions.add", "pins.add",
			"pins.remove", "conversations.rename", "conversations.archive"} {
			c.Handle("/"+method, m.recordCall(method))
		}
	})
	m.server.Start()
	t.Cleanup(m.server.Stop)

	return m
}

func (m *mockAPI) recordCall(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		m.mu.Lock()
		m.calls = append(m.calls, apiCall{method: method, form: r.Form})
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "chat.postMessage", "chat.update":
			_, _ = fmt.Fprintf(w, `{"ok": true, "channel": %q, "ts": "1612890000.000100"}`, r.FormValue("channel"))
		case "conversations.rename":
			_, _ = fmt.Fprintf(w, `{"ok": true, "channel": {"id": %q, "name": %q}}`, r.FormValue("channel"), r.FormValue("name"))
		default:
			_, _ = w.Write([]byte(`{"ok": true}`))
		}
	}
}

func (m *mockAPI) lastCall() apiCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return apiCall{}
	}
	return m.calls[len(m.calls)-1]
}

// newTestConnector returns a Slack connector which uses a mock Slack API server,
// and an event recorder instead of a real bot. The given users are pre-cached.
func newTestConnector(t *testing.T, cfg Config, users ...knownusers.User) (*Connector, *mockAPI, *recorder) {
	t.Helper()

	m := newMockAPI(t)
	r := &recorder{}

	cfg.APIURL = m.server.GetAPIURL()
	return New(cfg, knownusers.NewMemory(users...), r), m, r
}

// seededUsers are the users that are already cached
// when the connector receives most test payloads.
func seededUsers() []knownusers.User {
	return []knownusers.User{
		{ID: "U01NK1K9L68", Name: "Test User"},
		{ID: "U01P7131BA4", Name: "Another User"},
	}
}

// webhookRequest converts a test payload file into the data that
// the HTTP server passes to the connector's webhook handler.
func webhookRequest(t *testing.T, filename string) connectors.RequestData {
	t.Helper()

	body, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatal(err)
	}

	return rawWebhookRequest(t, filename, body)
}

func rawWebhookRequest(t *testing.T, filename string, body []byte) connectors.RequestData {
	t.Helper()

	r := connectors.RequestData{Headers: http.Header{}, RawPayload: body}
	if strings.HasSuffix(filename, ".urlencoded") {
		r.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
		form, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatal(err)
		}
		r.Form = form
		return r
	}

	r.Headers.Set("Content-Type", "application/json")
	return r
}

// onlyEvent checks that exactly one event of the expected type was dispatched, and returns it.
func onlyEvent[T events.Event](t *testing.T, r *recorder) T {
	t.Helper()

	es := r.all()
	if len(es) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(es))
	}

	e, ok := es[0].(T)
	if !ok {
		var want T
		t.Fatalf("dispatched %T, want %T", es[0], want)
	}
	return e
}
