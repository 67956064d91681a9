package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"relayfeed/internal/handler/http/respond"
)

type ctxKey string

const ctxPrincipal ctxKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	Role    string
}

// PrincipalFromContext returns the caller stored by Authz.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok
}

// Authz requires a valid bearer token on every non-public endpoint and checks the
// token's role against RolePermissions for the request method and path.
func Authz(secret []byte, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			claims, err := bearerClaims(r.Header.Get("Authorization"), secret, now)
			if err != nil {
				observeCheck("", r.Method, outcomeInvalid, start)
				respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
				return
			}

			if !checkRolePermission(claims.Role, r.Method, r.URL.Path) {
				observeCheck(claims.Role, r.Method, outcomeForbidden, start)
				respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}
			observeCheck(claims.Role, r.Method, outcomeAllowed, start)

			ctx := context.WithValue(r.Context(), ctxPrincipal, Principal{Subject: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerClaims(header string, secret []byte, now func() time.Time) (*Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, errors.New("missing bearer token")
	}
	return ParseToken(secret, strings.TrimSpace(strings.TrimPrefix(header, prefix)), now)
}
