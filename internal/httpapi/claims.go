package httpapi

import (
	"context"
	"net/http"
)

// Claims are the authenticated-identity fields every tenant-scoped
// handler needs. A real deployment populates these from a validated JWT
// or OIDC token; this repository's extraction middleware is a
// development stand-in, not a security boundary (§6).
type Claims struct {
	LobID  string
	TeamID string
	UserID string
	Role   string
}

type claimsContextKey struct{}

// WithClaims returns a context carrying c, retrievable via ClaimsFromContext.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// ClaimsFromContext returns the Claims attached to ctx, or the zero value
// and false if none are present.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(Claims)
	return c, ok
}

// HeaderClaimsMiddleware reads X-Lob-Id/X-Team-Id/X-User-Id/X-Role off
// the incoming request and attaches them to the request context as
// Claims. It does not authenticate anything — it is the minimal stand-in
// §6 calls for so the routing/dispatch layer has claims to wire against;
// a real deployment replaces this with its identity provider integration.
func HeaderClaimsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Claims{
			LobID:  r.Header.Get("X-Lob-Id"),
			TeamID: r.Header.Get("X-Team-Id"),
			UserID: r.Header.Get("X-User-Id"),
			Role:   r.Header.Get("X-Role"),
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

// requireLobTeam extracts Claims and fails with ErrUnauthenticated unless
// both lob_id and team_id are present.
func requireLobTeam(r *http.Request) (Claims, error) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok || c.LobID == "" || c.TeamID == "" {
		return Claims{}, ErrUnauthenticated("missing lob_id/team_id claims")
	}
	return c, nil
}

// requireLob extracts Claims and fails unless lob_id is present.
func requireLob(r *http.Request) (Claims, error) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok || c.LobID == "" {
		return Claims{}, ErrUnauthenticated("missing lob_id claim")
	}
	return c, nil
}

// requireAdmin extracts Claims and fails unless the Admin role is set.
func requireAdmin(r *http.Request) (Claims, error) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok || c.Role != "Admin" {
		return Claims{}, ErrForbidden("admin role required")
	}
	return c, nil
}
