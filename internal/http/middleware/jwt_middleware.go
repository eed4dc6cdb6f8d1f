package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/http/response"
	"github.com/diagnosis/interview-board/internal/platform/auth"
	"github.com/diagnosis/interview-board/internal/service"
	"github.com/diagnosis/interview-board/pkg/logger"
)

type ctxKey string

const CtxCaller ctxKey = "caller"

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				response.Unauthorized(w, "No token")
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				response.Unauthorized(w, "Invalid token")
				return
			}
			id, err := claims.UserID()
			if err != nil {
				response.Unauthorized(w, "Invalid token")
				return
			}

			caller := service.Caller{ID: id, Role: claims.Role}
			ctx := context.WithValue(r.Context(), CtxCaller, caller)
			ctx = context.WithValue(ctx, logger.UserIDKey, id.String())
			ctx = context.WithValue(ctx, logger.RoleKey, string(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}

// RequireRole must run after Authenticate.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r)
			if !ok {
				response.Unauthorized(w, "No token")
				return
			}
			if caller.Role != role {
				msg := "Not allowed"
				if role == domain.RoleAdmin {
					msg = "Admin only"
				}
				response.Forbidden(w, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CallerFrom(r *http.Request) (service.Caller, bool) {
	c, ok := r.Context().Value(CtxCaller).(service.Caller)
	return c, ok
}
