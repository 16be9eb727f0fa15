// Package relay binds one client WebSocket to one upstream WebSocket for the
// connection's lifetime. Traffic flows both directions concurrently; only the
// upstream→client direction is sanitized. There is no reconnection and no
// redelivery: either side closing or failing tears both sockets down.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"chaingate/gateway/auth"
	"chaingate/gateway/jsonrpc"
	"chaingate/gateway/meter"
	"chaingate/gateway/metrics"
	"chaingate/gateway/networks"
	"chaingate/gateway/sanitize"
	"chaingate/gateway/upstream"
)

const (
	wsWriteTimeout      = 10 * time.Second
	upstreamDialTimeout = 10 * time.Second
	maxMessageBytes     = 1 << 20 // 1 MiB
)

// Route parameters for GET /ws/{network}/{apiKey}.
const (
	RouteParamNetwork = "network"
	RouteParamAPIKey  = "apiKey"
)

type direction int

const (
	clientToUpstream direction = iota
	upstreamToClient
)

type Relay struct {
	registry  *networks.Registry
	endpoints upstream.Endpoints
	guard     *auth.Guard
	sanitizer *sanitize.Sanitizer
	meter     *meter.Meter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(registry *networks.Registry, endpoints upstream.Endpoints, guard *auth.Guard, sanitizer *sanitize.Sanitizer, usage *meter.Meter, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New("", nil)
	}
	return &Relay{
		registry:  registry,
		endpoints: endpoints,
		guard:     guard,
		sanitizer: sanitizer,
		meter:     usage,
		metrics:   m,
		logger:    logger.With("component", "relay"),
	}
}

// ServeHTTP drives the per-connection state machine: accept, authenticate,
// resolve, dial upstream, then relay until either side goes away. Rejections
// close the client socket with the failure's reserved code and a JSON reason
// before any upstream socket is opened.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, RouteParamNetwork)
	credential := chi.URLParam(r, RouteParamAPIKey)
	source := auth.ClientSource(r)

	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	client.SetReadLimit(maxMessageBytes)

	if slug == "" || credential == "" {
		closeWith(client, jsonrpc.ErrCredentialMalformed)
		return
	}

	conn, failure := rl.guard.Authenticate(r.Context(), credential, source)
	if failure != nil {
		closeWith(client, failure)
		return
	}

	desc, err := rl.registry.Resolve(slug)
	if err != nil {
		closeWith(client, jsonrpc.ErrNetworkUnsupported)
		return
	}
	if !rl.endpoints.Configured() {
		closeWith(client, jsonrpc.ErrProviderMissing)
		return
	}

	dialCtx, cancelDial := context.WithTimeout(r.Context(), upstreamDialTimeout)
	up, _, err := websocket.Dial(dialCtx, rl.endpoints.WSEndpoint(desc), nil)
	cancelDial()
	if err != nil {
		rl.logger.Warn("upstream dial failed", "network", desc.Slug, "tenant", conn.ID, "error", err)
		closeWith(client, jsonrpc.ErrUpstreamUnavailable)
		return
	}
	up.SetReadLimit(maxMessageBytes)

	rl.metrics.ActiveRelays.Inc()
	defer rl.metrics.ActiveRelays.Dec()
	rl.logger.Info("relay open", "network", desc.Slug, "tenant", conn.ID)
	rl.run(r.Context(), client, up, conn.ID)
	rl.logger.Info("relay closed", "network", desc.Slug, "tenant", conn.ID)
}

// run relays both directions until one pump returns, then tears down both
// sockets. No message is retried after a close.
func (rl *Relay) run(ctx context.Context, client, up *websocket.Conn, tenantID uuid.UUID) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, 2)
	go func() {
		results <- rl.pump(ctx, client, up, clientToUpstream, tenantID)
	}()
	go func() {
		results <- rl.pump(ctx, up, client, upstreamToClient, tenantID)
	}()

	first := <-results
	cancel()

	status := websocket.CloseStatus(first)
	if status == -1 && !errors.Is(first, context.Canceled) {
		// Transport fault after RELAYING began: generic error code toward
		// the client, nothing upstream-identifying in the reason. When the
		// fault was the client's own connection this write is a no-op.
		closeWith(client, jsonrpc.ErrUpstreamError)
	} else {
		_ = client.Close(websocket.StatusNormalClosure, "relay closed")
	}
	_ = up.Close(websocket.StatusNormalClosure, "relay closed")

	// Both pumps observe the cancelled context or the closed sockets.
	<-results
}

// pump copies frames from src to dst until src fails or the relay stops.
// Client→upstream frames are forwarded verbatim; upstream→client frames are
// sanitized when they parse as JSON and forwarded raw otherwise. Every
// forwarded message is one billable unit.
func (rl *Relay) pump(ctx context.Context, src, dst *websocket.Conn, dir direction, tenantID uuid.UUID) error {
	label := metrics.DirectionClientToUpstream
	if dir == upstreamToClient {
		label = metrics.DirectionUpstreamToClient
	}
	for {
		msgType, data, err := src.Read(ctx)
		if err != nil {
			return err
		}
		if dir == upstreamToClient {
			data, _ = rl.sanitizer.Raw(data)
		}
		writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
		err = dst.Write(writeCtx, msgType, data)
		cancelWrite()
		if err != nil {
			return err
		}
		rl.meter.Record(tenantID)
		rl.metrics.RelayMessages.WithLabelValues(label).Inc()
	}
}

func closeWith(conn *websocket.Conn, failure *jsonrpc.Failure) {
	_ = conn.Close(websocket.StatusCode(failure.CloseCode), jsonrpc.CloseReason(failure))
}
