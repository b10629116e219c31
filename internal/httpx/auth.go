package httpx

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/ariefcatur/go-lodge-escrow/internal/users"
)

type ctxKey struct{}

// Auth checks bearer tokens issued by users.TokenIssuer.
type Auth struct {
	Tokens *users.TokenIssuer
}

// Require rejects requests without a valid token, and with roles given, tokens of any other role.
func (a *Auth) Require(roles ...users.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || raw == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Message: "missing bearer token", Code: "unauthenticated"})
				return
			}
			claims, err := a.Tokens.Parse(raw)
			if err != nil {
				fail(w, r, err)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				writeJSON(w, http.StatusForbidden, errorBody{Message: "not allowed for role " + string(claims.Role), Code: "forbidden"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}

// caller returns the claims Require stored on the request.
func caller(r *http.Request) *users.Claims {
	c, _ := r.Context().Value(ctxKey{}).(*users.Claims)
	return c
}
