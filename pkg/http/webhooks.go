package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/parley/pkg/connectors"
)

const (
	timeout = 3 * time.Second

	// Slack's own limit for interaction payloads is much lower than this.
	maxBodySize = 1 << 20
)

var errBodyTooLarge = errors.New("request body too large")

type httpServer struct {
	httpPort   int      // To initialize the HTTP server.
	thrippyURL *url.URL // Optional passthrough for Thrippy OAuth.

	connectors *connectors.Registry
}

func newHTTPServer(cmd *cli.Command, r *connectors.Registry) *httpServer {
	return &httpServer{
		httpPort:   cmd.Int("webhook-port"),
		thrippyURL: baseURL(cmd.String("thrippy-http-addr")),

		connectors: r,
	}
}

// baseURL converts the given address (e.g. "localhost:14460") into a URL.
// If the address is empty, this function returns a nil reference.
func baseURL(addr string) *url.URL {
	if addr == "" {
		return nil
	}

	// Force an HTTP scheme.
	if strings.HasPrefix(addr, "https://") {
		addr = strings.Replace(addr, "https://", "http://", 1)
	}
	if !strings.HasPrefix(addr, "http://") {
		addr = "http://" + addr
	}

	// Strip any suffix after the address.
	u, err := url.Parse(addr)
	if err != nil {
		return nil
	}
	if u.Host == "" {
		return nil
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u
}

func (s *httpServer) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /connector/{name...}", s.webhookHandler)

	if s.thrippyURL != nil {
		log.Info().Msgf("HTTP passthrough for Thrippy OAuth callbacks: %s", s.thrippyURL)
		mux.HandleFunc("GET /callback", s.thrippyHandler)
		mux.HandleFunc("GET /start", s.thrippyHandler)
		mux.HandleFunc("POST /start", s.thrippyHandler)
	}

	return mux
}

// run starts an HTTP server to expose webhooks. This is blocking,
// to keep the bot running, until the context is canceled.
func (s *httpServer) run(ctx context.Context) error {
	server := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(s.httpPort)),
		Handler:      s.mux(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("HTTP server listening on port %d", s.httpPort)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Send()
		return err
	}

	return nil
}

// webhookHandler passes incoming asynchronous event notifications
// over HTTP to the connector that is named in the URL path.
func (s *httpServer) webhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	l := log.With().Str("http_method", r.Method).Str("url_path", r.URL.EscapedPath()).Logger()
	l.Debug().Msg("received HTTP request")

	name, suffix, ok := getName(w, r, l)
	if !ok {
		// Logging and HTTP status code setting already done in [getName].
		return
	}

	l = l.With().Str("connector", name).Logger()
	h, ok := s.connectors.Lookup(name)
	if !ok {
		l.Warn().Msg("bad request: connector not found")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	data, err := requestData(r, suffix)
	if errors.Is(err, errBodyTooLarge) {
		l.Warn().Int("max_size", maxBodySize).Msg("bad request: body too large")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		l.Warn().Err(err).Msg("bad request: failed to read body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	statusCode := h(l.WithContext(r.Context()), w, data)
	if statusCode != 0 {
		w.WriteHeader(statusCode)
	}
}

// getName extracts the connector name from the request's URL path.
// The path may contain an opaque suffix after the name, separated by a slash,
// for third-party services that support/require multiple webhooks per connector.
func getName(w http.ResponseWriter, r *http.Request, l zerolog.Logger) (name, suffix string, ok bool) {
	name = r.PathValue("name")
	if name == "" {
		l.Warn().Msg("missing connector name")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if strings.Contains(name, "/") {
		parts := strings.SplitN(name, "/", 2)
		name = parts[0]
		suffix = parts[1]
	}

	ok = true
	return
}

// requestData reads the request's body, and also parses it if it's a web form.
// The raw body is always preserved, to allow signature verification.
func requestData(r *http.Request, suffix string) (connectors.RequestData, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return connectors.RequestData{}, err
	}
	if len(body) > maxBodySize {
		return connectors.RequestData{}, errBodyTooLarge
	}

	data := connectors.RequestData{
		PathSuffix: suffix,
		Headers:    r.Header,
		RawPayload: body,
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "application/x-www-form-urlencoded" {
		if data.Form, err = url.ParseQuery(string(body)); err != nil {
			return connectors.RequestData{}, err
		}
	}

	return data, nil
}

// thrippyHandler passes-through incoming HTTP requests (OAuth callbacks),
// as a proxy, to a local Thrippy server. This allows Parley and Thrippy to
// share a single HTTP tunnel when running together in a local development setup.
func (s *httpServer) thrippyHandler(w http.ResponseWriter, r *http.Request) {
	l := log.With().Str("http_method", r.Method).Str("url_path", r.URL.EscapedPath()).Logger()
	l.Info().Msg("passing-through HTTP request to Thrippy")

	// Adjust the original URL to the Thrippy server's base URL.
	u := r.URL
	u.Scheme = s.thrippyURL.Scheme
	u.Host = s.thrippyURL.Host

	// Construct the proxy request.
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), r.Body)
	if err != nil {
		l.Err(err).Msg("failed to construct Thrippy proxy request")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	req.Header = r.Header.Clone()

	// Send the proxy request.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		l.Err(err).Msg("failed to send Thrippy proxy request")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	// Relay Thrippy's response back to the client.
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		l.Err(err).Msg("failed to copy Thrippy response body")
	}
}
