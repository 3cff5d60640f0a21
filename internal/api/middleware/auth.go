package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/repohandler/repohandler/internal/api/response"
	"github.com/repohandler/repohandler/internal/auth"
)

const identityKey contextKey = "identity"

// TeamAuth is middleware that resolves the Authorization header to a team
// Identity. Missing or undecodable tokens return 401.
func TeamAuth(issuer auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity, err := issuer.ParseTeamToken(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, auth.ErrMissingHeader) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", requestID)
					return
				}
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth is middleware that only admits the admin token. A missing header
// returns 401 and any other token 403.
func AdminAuth(issuer auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity, err := issuer.ParseAdminToken(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, auth.ErrMissingHeader) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", requestID)
					return
				}
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Admin access required", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
