package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"zenchat/internal/observability/metrics"
	obsmw "zenchat/internal/observability/middleware"
)

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(Identity)
	return v, ok
}

// RequireAuth validates the bearer token on every request. Unlike the
// realtime handshake, the REST surface re-checks the credential each time.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := obsmw.RequestIDFromContext(r.Context())

			raw := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(raw), "bearer ") {
				metrics.AuthAttemptsTotal.WithLabelValues("rest", "failure").Inc()
				slog.Warn("auth missing bearer", "request_id", reqID)
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			id, err := tokens.Verify(strings.TrimSpace(raw[len("Bearer "):]))
			if err != nil {
				metrics.AuthAttemptsTotal.WithLabelValues("rest", "failure").Inc()
				slog.Warn("auth invalid token", "error", err, "request_id", reqID)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			metrics.AuthAttemptsTotal.WithLabelValues("rest", "success").Inc()
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// BearerFromRequest extracts a token from the Authorization header or,
// for websocket handshakes where browsers cannot set headers, from the
// token query parameter.
func BearerFromRequest(r *http.Request) string {
	if raw := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[len("Bearer "):])
	}
	return r.URL.Query().Get("token")
}
