package httpserver

import (
	"context"
	"net/http"
	"strings"

	"messagely/internal/domain"
	"messagely/internal/security"
)

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a new context carrying the verified caller.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// CurrentIdentity extracts the verified caller from context, if any.
func CurrentIdentity(r *http.Request) (domain.Identity, bool) {
	id, ok := r.Context().Value(identityContextKey).(domain.Identity)
	return id, ok && id.Username != ""
}

// AuthMiddleware validates the Bearer token and attaches the identity to the
// context. The user row is not loaded; handlers check what the caller may see.
func AuthMiddleware(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				respond(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid Authorization header"})
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			id, err := tokens.Verify(tokenStr)
			if err != nil {
				respond(w, http.StatusUnauthorized, errorResponse{Error: domain.ErrInvalidToken.Error()})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// requireIdentity writes 401 when the middleware did not run.
func requireIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := CurrentIdentity(r)
	if !ok {
		respond(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}
	return id, ok
}
