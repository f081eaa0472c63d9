// Package slack is the bot's Slack connector. It receives [Events API]
// notifications and [interaction payloads], over [HTTP webhooks and Socket Mode],
// converts them into connector-agnostic [events], and sends events back to Slack.
//
// [Events API]: https://docs.slack.dev/apis/events-api
// [interaction payloads]: https://docs.slack.dev/interactivity/handling-user-interaction
// [HTTP webhooks and Socket Mode]: https://docs.slack.dev/apis/events-api/comparing-http-socket-mode
// [events]: https://pkg.go.dev/github.com/tzrikka/parley/pkg/events
package slack
