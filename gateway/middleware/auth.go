package middleware

import (
	"net/http"

	"chaingate/gateway/auth"
	"chaingate/gateway/jsonrpc"
)

// Auth wraps an endpoint with the authentication guard. It must wrap the
// endpoint handler itself (not sit on a mux) so route parameters are already
// resolved when the extractors run.
func Auth(guard *auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := auth.FirstMatch(r, auth.HTTPExtractors()...)
			conn, failure := guard.Authenticate(r.Context(), credential, auth.ClientSource(r))
			if failure != nil {
				jsonrpc.WriteFailure(w, failure)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithConnection(r.Context(), conn)))
		})
	}
}
