package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

type Middleware struct {
	tokens *Tokens
	logger *slog.Logger
}

func NewMiddleware(tokens *Tokens, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Authenticate attaches the bearer token's identity to the request context.
// Requests without a valid token pass through anonymously.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.tokens.Parse(raw)
		if err != nil {
			m.logger.Debug("rejected bearer token", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			httpx.WriteError(w, m.logger, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			httpx.WriteError(w, m.logger, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !id.IsAdmin() {
			httpx.WriteError(w, m.logger, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r)
	}
}

// UserID returns the authenticated user's id. Only valid behind RequireUser.
func UserID(r *http.Request) string {
	id, _ := FromContext(r.Context())
	return id.UserID
}
