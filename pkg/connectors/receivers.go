package connectors

import (
	"context"
	"net/http"
	"net/url"
)

// RequestData is what the HTTP server extracts from an
// incoming webhook request, before passing it to a connector.
type RequestData struct {
	PathSuffix string
	Headers    http.Header
	Form       url.Values // Only for "application/x-www-form-urlencoded" requests.
	RawPayload []byte
}

// WebhookHandlerFunc processes an incoming webhook request. It returns the HTTP status
// code to respond with, or 0 if the handler already wrote its own response.
type WebhookHandlerFunc func(ctx context.Context, w http.ResponseWriter, r RequestData) int
