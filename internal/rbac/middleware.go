package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/castellan/castellan/internal/platform/httpx"
	"github.com/castellan/castellan/internal/shared"
)

// Middleware guards routes with permission checks. It only inspects the
// permission list attached to the session at login; freshness of that
// list is the responsibility of whoever populated it. The graph store
// and fact cache are never consulted here.
type Middleware struct {
	Logger *slog.Logger
}

// RequirePermission rejects requests whose session principal does not
// hold the named permission.
func (m Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.PrincipalID() == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
				return
			}
			perms := sess.Permissions()
			if perms == nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "no permissions found")
				return
			}
			for _, p := range perms {
				if p == name {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("permission denied",
					slog.String("principal", sess.PrincipalID()),
					slog.String("permission", name))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission: "+name)
		})
	}
}

// RequireAny passes when the principal holds at least one of the given
// permissions. With no arguments the check is a no-op.
func (m Middleware) RequireAny(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(names) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.PrincipalID() == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
				return
			}
			perms := sess.Permissions()
			if perms == nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "no permissions found")
				return
			}
			held := make(map[string]struct{}, len(perms))
			for _, p := range perms {
				held[p] = struct{}{}
			}
			for _, name := range names {
				if _, ok := held[name]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission: "+strings.Join(names, " or "))
		})
	}
}
