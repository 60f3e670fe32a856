package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openfield/gatepass/internal/http/response"
	"github.com/openfield/gatepass/pkg/auth"
	"github.com/openfield/gatepass/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireSession verifies the bearer token and restricts access to the
// given roles. Expired sessions get a distinct code so the device knows to
// prompt for re-login rather than retry.
func RequireSession(secret string, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				w.Header().Set("WWW-Authenticate", "Bearer")
				response.Unauthorized(w, "missing or invalid authorization header")
				return
			}

			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				if errors.Is(err, auth.ErrExpired) {
					response.WriteError(w, http.StatusUnauthorized, "session expired, log in again", response.CodeExpiredToken)
					return
				}
				response.WriteError(w, http.StatusUnauthorized, "invalid session token", response.CodeInvalidToken)
				return
			}

			if len(roles) > 0 && !roleAllowed(claims.Role, roles) {
				response.Forbidden(w, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.OperatorKey, claims.Operator)
			if claims.Gate != "" {
				ctx = context.WithValue(ctx, logger.GateKey, claims.Gate)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}
