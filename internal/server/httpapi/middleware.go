package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/server/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// PrincipalFromContext returns the principal attached by the session gate.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*models.Principal)
	return p, ok
}

// bearerToken extracts the session token from the Authorization header.
// Returns "" when the header is missing or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	h := r.Header.Get(common.AuthorizationHeader)
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
}

// requireSession is the access-control gate on protected routes. It resolves
// the bearer token through the session service and attaches the principal to
// the request context. Every validation failure maps to the same 401 body so
// the response does not help token guessing; the specific reason is only
// logged server-side.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}

		p, err := s.sessions.Validate(r.Context(), token)
		if err != nil {
			s.logger.Debug(r.Context(), "session rejected", "reason", err)
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
