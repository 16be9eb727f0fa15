// Package proxy relays unary JSON-RPC calls to the upstream provider. Each
// call is proxied independently: no caching, no deduplication, no retries.
package proxy

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chaingate/gateway/auth"
	"chaingate/gateway/jsonrpc"
	"chaingate/gateway/meter"
	"chaingate/gateway/metrics"
	"chaingate/gateway/networks"
	"chaingate/gateway/sanitize"
	"chaingate/gateway/upstream"
)

// Response headers exposing the resolved network and measured latency.
const (
	HeaderNetwork   = "X-Chaingate-Network"
	HeaderChainID   = "X-Chaingate-Chain-Id"
	HeaderLatencyMS = "X-Chaingate-Latency-Ms"
)

const (
	maxRequestBytes  = 1 << 20 // 1 MiB
	maxResponseBytes = 8 << 20 // 8 MiB
)

// RouteParamNetwork is the chi parameter carrying the network slug.
const RouteParamNetwork = "network"

type Handler struct {
	registry  *networks.Registry
	endpoints upstream.Endpoints
	sanitizer *sanitize.Sanitizer
	meter     *meter.Meter
	metrics   *metrics.Metrics
	client    *http.Client
	logger    *slog.Logger
}

// NewHandler wires the proxy. A nil client gets a default whose transport is
// wrapped for tracing; per-call timeouts are deliberately absent, so
// cancellation is driven by the caller disconnecting.
func NewHandler(registry *networks.Registry, endpoints upstream.Endpoints, sanitizer *sanitize.Sanitizer, usage *meter.Meter, m *metrics.Metrics, client *http.Client, logger *slog.Logger) *Handler {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New("", nil)
	}
	return &Handler{
		registry:  registry,
		endpoints: endpoints,
		sanitizer: sanitizer,
		meter:     usage,
		metrics:   m,
		client:    client,
		logger:    logger.With("component", "proxy"),
	}
}

// ServeHTTP relays one authenticated JSON-RPC call. The authentication guard
// has already run; the resolved tenant connection rides on the context.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, ok := auth.ConnectionFrom(r.Context())
	if !ok {
		jsonrpc.WriteFailure(w, jsonrpc.ErrCredentialMissing)
		return
	}

	slug := chi.URLParam(r, RouteParamNetwork)
	desc, err := h.registry.Resolve(slug)
	if err != nil {
		h.metrics.ProxiedRequests.WithLabelValues(slug, metrics.OutcomeRejected).Inc()
		jsonrpc.WriteFailure(w, jsonrpc.ErrNetworkUnsupported)
		return
	}
	if !h.endpoints.Configured() {
		h.metrics.ProxiedRequests.WithLabelValues(desc.Slug, metrics.OutcomeRejected).Inc()
		jsonrpc.WriteFailure(w, jsonrpc.ErrProviderMissing)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		h.metrics.ProxiedRequests.WithLabelValues(desc.Slug, metrics.OutcomeRejected).Inc()
		jsonrpc.WriteFailure(w, jsonrpc.ErrUpstreamUnavailable)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.endpoints.HTTPEndpoint(desc), bytes.NewReader(body))
	if err != nil {
		h.metrics.ProxiedRequests.WithLabelValues(desc.Slug, metrics.OutcomeUnavailable).Inc()
		jsonrpc.WriteFailure(w, jsonrpc.ErrUpstreamUnavailable)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		// Transport failure: generic error, no upstream text, no usage count.
		h.metrics.ProxiedRequests.WithLabelValues(desc.Slug, metrics.OutcomeUnavailable).Inc()
		h.logger.Warn("upstream call failed", "network", desc.Slug, "error", err)
		jsonrpc.WriteFailure(w, jsonrpc.ErrUpstreamUnavailable)
		return
	}
	defer resp.Body.Close()

	// Any upstream HTTP response is billable traffic, JSON-RPC errors included.
	h.meter.Record(conn.ID)
	h.metrics.UpstreamLatency.WithLabelValues(desc.Slug).Observe(latency.Seconds())

	upstreamBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		h.metrics.ProxiedRequests.WithLabelValues(desc.Slug, metrics.OutcomeUnavailable).Inc()
		h.logger.Warn("upstream body read failed", "network", desc.Slug, "error", err)
		jsonrpc.WriteFailure(w, jsonrpc.ErrUpstreamUnavailable)
		return
	}

	sanitized, _ := h.sanitizer.Raw(upstreamBody)

	outcome := metrics.OutcomeOK
	if resp.StatusCode >= http.StatusBadRequest {
		outcome = metrics.OutcomeUpstreamErr
	}
	h.metrics.ProxiedRequests.WithLabelValues(desc.Slug, outcome).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderNetwork, desc.DisplayName)
	w.Header().Set(HeaderChainID, strconv.FormatUint(desc.ChainID, 10))
	w.Header().Set(HeaderLatencyMS, strconv.FormatInt(latency.Milliseconds(), 10))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(sanitized)
}
