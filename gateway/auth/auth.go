// Package auth validates opaque tenant credentials before any upstream
// interaction. Every rejection resolves locally: the upstream provider is
// never touched and usage is never counted for a rejected call.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"chaingate/gateway/jsonrpc"
	"chaingate/observability/logging"
	"chaingate/tenant"
)

const (
	// HeaderAPIKey is the dedicated credential header.
	HeaderAPIKey = "X-Api-Key"
	// QueryAPIKey is the credential query parameter.
	QueryAPIKey = "apiKey"
	// PathAPIKey is the chi route parameter carrying a path credential.
	PathAPIKey = "apiKey"
)

type contextKey string

const connectionContextKey contextKey = "chaingate.tenant"

// WithConnection attaches the authenticated connection to the in-flight
// context.
func WithConnection(ctx context.Context, conn *tenant.Connection) context.Context {
	return context.WithValue(ctx, connectionContextKey, conn)
}

// ConnectionFrom returns the connection attached by a successful guard run.
func ConnectionFrom(ctx context.Context) (*tenant.Connection, bool) {
	conn, ok := ctx.Value(connectionContextKey).(*tenant.Connection)
	return conn, ok
}

// Extractor pulls a candidate credential out of a request. Extractors are
// tried in a fixed priority order; the first non-empty result wins.
type Extractor func(r *http.Request) string

// PathExtractor reads a chi route parameter.
func PathExtractor(param string) Extractor {
	return func(r *http.Request) string {
		return strings.TrimSpace(chi.URLParam(r, param))
	}
}

// HeaderExtractor reads a request header.
func HeaderExtractor(name string) Extractor {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// QueryExtractor reads a query parameter.
func QueryExtractor(name string) Extractor {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.URL.Query().Get(name))
	}
}

// FirstMatch runs extractors in order and returns the first non-empty hit.
func FirstMatch(r *http.Request, extractors ...Extractor) string {
	for _, extract := range extractors {
		if credential := extract(r); credential != "" {
			return credential
		}
	}
	return ""
}

// HTTPExtractors is the unary-transport priority order: path segment, then
// header, then query parameter.
func HTTPExtractors() []Extractor {
	return []Extractor{
		PathExtractor(PathAPIKey),
		HeaderExtractor(HeaderAPIKey),
		QueryExtractor(QueryAPIKey),
	}
}

// ClientSource resolves the caller's observed address: the first
// X-Forwarded-For hop when present, otherwise the remote address host.
func ClientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Guard authenticates credentials against the tenant store.
type Guard struct {
	store  tenant.Store
	logger *slog.Logger
}

func NewGuard(store tenant.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, logger: logger.With("component", "auth")}
}

// Authenticate runs the guard steps in order, each a hard stop: presence,
// structural shape, store lookup, active flag, source allow-list. On success
// the resolved connection is returned for the caller to attach to its
// context.
func (g *Guard) Authenticate(ctx context.Context, credential, source string) (*tenant.Connection, *jsonrpc.Failure) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, jsonrpc.ErrCredentialMissing
	}
	if !tenant.ValidKeyShape(credential) {
		return nil, jsonrpc.ErrCredentialMalformed
	}
	conn, err := g.store.ResolveByKey(ctx, credential)
	if err != nil {
		if !errors.Is(err, tenant.ErrNotFound) {
			g.logger.Error("tenant lookup failed", "error", err, "key", logging.RedactKey(credential))
		}
		return nil, jsonrpc.ErrCredentialInvalid
	}
	if !conn.Active {
		g.logger.Info("rejected deactivated credential", "tenant", conn.ID, "key", logging.RedactKey(credential))
		return nil, jsonrpc.ErrCredentialDeactivated
	}
	if !conn.SourceAllowed(source) {
		g.logger.Info("rejected source", "tenant", conn.ID, "source", source)
		return nil, jsonrpc.ErrSourceNotAllowed
	}
	return conn, nil
}
