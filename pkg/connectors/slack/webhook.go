package slack

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/tzrikka/parley/pkg/connectors"
)

const (
	contentTypeHeader = "Content-Type"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// WebhookHandler receives Events API notifications (JSON) and interaction payloads
// (web forms). It acknowledges all authentic requests with HTTP status 200,
// even if their payloads are malformed or unsupported, because Slack would
// otherwise keep retrying to deliver them. Such payloads just don't produce events.
func (c *Connector) WebhookHandler(ctx context.Context, w http.ResponseWriter, r connectors.RequestData) int {
	l := zerolog.Ctx(ctx).With().Str("connector", c.name).Str("link_medium", "webhook").Logger()

	statusCode := c.checkSignature(l, r)
	if statusCode != http.StatusOK {
		return statusCode
	}

	payload := extractPayload(l, r)
	if payload == nil {
		return http.StatusOK
	}

	h := payloadHeader{}
	if err := json.Unmarshal(payload, &h); err != nil {
		l.Warn().Err(err).Msg("ignoring malformed Slack payload")
		return http.StatusOK
	}

	// https://docs.slack.dev/reference/events/url_verification
	if h.Type == string(slackevents.URLVerification) {
		l.Debug().Str("event_type", h.Type).Msg("replied to Slack URL verification event")
		w.Header().Set(contentTypeHeader, contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": h.Challenge})
		return 0 // [http.StatusOK] already written by "w.Write".
	}

	c.dispatch(l.WithContext(ctx), payload)
	return http.StatusOK
}

// checkSignature implements https://docs.slack.dev/authentication/verifying-requests-from-slack,
// if the connector is configured with a signing secret. Otherwise all requests are accepted.
func (c *Connector) checkSignature(l zerolog.Logger, r connectors.RequestData) int {
	if c.signingSecret == "" {
		return http.StatusOK
	}

	sv, err := slack.NewSecretsVerifier(r.Headers, c.signingSecret)
	if err != nil {
		l.Warn().Err(err).Msg("bad request: missing or stale signature headers")
		return http.StatusBadRequest
	}

	if _, err := sv.Write(r.RawPayload); err != nil {
		l.Err(err).Msg("HMAC write error")
		return http.StatusInternalServerError
	}

	if err := sv.Ensure(); err != nil {
		l.Warn().Err(err).Msg("signature verification failed")
		return http.StatusForbidden
	}

	return http.StatusOK
}

// extractPayload returns the JSON payload of a Slack webhook request: either the
// entire body (Events API), or the "payload" field of a web form (interactions).
// It returns nil if the request's content type isn't supported.
func extractPayload(l zerolog.Logger, r connectors.RequestData) []byte {
	v := r.Headers.Get(contentTypeHeader)
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		l.Warn().Err(err).Str("header", contentTypeHeader).Str("got", v).
			Msg("ignoring request with invalid header value")
		return nil
	}

	switch mediaType {
	case contentTypeJSON:
		return r.RawPayload
	case contentTypeForm:
		if p := r.Form.Get("payload"); p != "" {
			return []byte(p)
		}
		l.Warn().Msg("ignoring web form without a payload")
		return nil
	default:
		l.Warn().Str("header", contentTypeHeader).Str("got", mediaType).
			Msg("ignoring request with unexpected header value")
		return nil
	}
}

// dispatch converts a Slack payload into events, and hands
// them over to the connector's parser. It doesn't fail.
func (c *Connector) dispatch(ctx context.Context, payload []byte) {
	l := zerolog.Ctx(ctx)

	es, err := c.creator.CreateEvents(ctx, payload)
	if err != nil {
		l.Warn().Err(err).Msg("failed to create events from Slack payload")
		return
	}

	if c.parser == nil {
		return
	}
	for _, e := range es {
		l.Trace().Str("event_kind", e.Kind()).Str("event_id", e.Meta().ID).Msg("dispatching event")
		c.parser.Parse(ctx, e)
	}
}
