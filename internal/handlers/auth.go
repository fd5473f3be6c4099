package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/petjoy-vn/petjoy-core/internal/policy"
	"github.com/petjoy-vn/petjoy-core/libs/auth"
	"github.com/petjoy-vn/petjoy-core/libs/httpx"
)

type principalKey struct{}

// RequireAuth verifies the Bearer token issued by the identity service and
// places the principal in the request context.
func RequireAuth(jwtSecret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
				return
			}
			claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), jwtSecret)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
				return
			}
			p := policy.Principal{ID: claims.Sub, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

func principalFrom(ctx context.Context) (policy.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(policy.Principal)
	return p, ok
}

// requirePrincipal is the belt-and-braces check inside handlers mounted
// behind RequireAuth.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (policy.Principal, bool) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
	}
	return p, ok
}
