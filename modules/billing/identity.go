package billing

import (
	"context"
	"net/http"

	"github.com/soralab/paywall/pkg/jwt"
)

// Identity is the authenticated caller, extracted from the access token the
// identity provider issued. The subject is the stable user identifier the
// subscription records are keyed by.
type Identity struct {
	Subject string
	Email   string
}

type identityClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

type contextKey struct{ name string }

var identityCtxKey = &contextKey{"billing.identity"}

// IdentityFromContext returns the identity stored by RequireIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey).(Identity)
	return identity, ok
}

// RequireIdentity verifies the bearer token on each request and stores the
// resulting identity in the request context. Requests without a valid token
// are rejected with 401; no route below this middleware runs unauthenticated.
func RequireIdentity(jwtSvc *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := jwt.BearerTokenExtractor(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}

			var claims identityClaims
			if err := jwtSvc.Parse(token, &claims); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "token carries no subject")
				return
			}

			ctx := context.WithValue(r.Context(), identityCtxKey, Identity{
				Subject: claims.Subject,
				Email:   claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
