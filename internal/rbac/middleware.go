package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/inkwell-press/inkwell/internal/shared"
)

// PrincipalResolver loads the principal snapshot for a user ID.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID int64) (*Principal, error)
}

// Middleware wires role-based authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver PrincipalResolver
	Logger   *slog.Logger
}

// WithPrincipal resolves the session user into a Principal and stores it in
// the request context. Anonymous requests pass through untouched.
func (m Middleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.sessionUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Resolver.ResolvePrincipal(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("resolve principal", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAny ensures the current principal is approved and holds at least
// one of the required roles. Anonymous requests are redirected to the login
// page; authenticated but unauthorized requests get 403.
func (m Middleware) RequireAny(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
				return
			}
			if !principal.Approved {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, role := range roles {
				if principal.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) sessionUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
