package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"portal-rest-api/internal/model"
	"portal-rest-api/pkg/apierror"
)

// IdentityKey is the context key for the authenticated identity.
const IdentityKey contextKey = "identity"

// TokenValidator resolves a bearer token to an identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Identity, error)
}

// NewAuthMiddleware requires a valid token in "Authorization: Bearer" or
// X-Token and stores the identity in the request context.
func NewAuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use an Authorization: Bearer token."))
				return
			}
			if tokens == nil {
				writeError(w, apierror.ServiceUnavailable("Authentication is not configured"))
				return
			}

			identity, err := tokens.ValidateToken(r.Context(), token)
			if err != nil {
				log.Printf("[Auth] Rejected token rid=%s: %v", GetRequestID(r.Context()), err)
				writeError(w, apierror.FromError(err))
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects identities whose role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil {
				writeError(w, apierror.Unauthorized(""))
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, apierror.Forbidden("Your role does not allow this action"))
		})
	}
}

// GetIdentity retrieves the identity from request context.
func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity returns ctx carrying identity. Used by tests and internal
// callers that authenticate by other means.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-Token"))
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
