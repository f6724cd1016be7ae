package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/shared"
)

func newGuardedRequest(t *testing.T, authenticated bool, roles, perms []string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)

	if authenticated {
		sess.SetPrincipal("7", "user")
		sess.SetAuthorization(roles, perms)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePermissionUnauthenticated(t *testing.T) {
	guard := Middleware{}
	handler := guard.RequirePermission("widgets.view")(okHandler())

	// No session at all.
	req := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	// Session present but no principal attached.
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, false, nil, nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequirePermissionNoPermissionsAttached(t *testing.T) {
	guard := Middleware{}
	handler := guard.RequirePermission("widgets.view")(okHandler())

	// Authenticated, but authorization was never attached: nil list.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, true, []string{"member"}, nil))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "no permissions found")
}

func TestRequirePermissionMissingNamed(t *testing.T) {
	guard := Middleware{}
	handler := guard.RequirePermission("widgets.edit")(okHandler())

	// An empty (non-nil) list means authorization ran and granted nothing.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, true, []string{"member"}, []string{}))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "missing permission: widgets.edit")

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, true, []string{"member"}, []string{"widgets.view"}))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "missing permission: widgets.edit")
}

func TestRequirePermissionGranted(t *testing.T) {
	guard := Middleware{}
	handler := guard.RequirePermission("widgets.view")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, true, []string{"member"}, []string{"widgets.view", "widgets.edit"}))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAny(t *testing.T) {
	guard := Middleware{}

	// No names: pass-through.
	handler := guard.RequireAny()(okHandler())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/widgets", nil))
	require.Equal(t, http.StatusOK, res.Code)

	handler = guard.RequireAny("widgets.edit", "widgets.view")(okHandler())

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, true, nil, []string{"widgets.view"}))
	require.Equal(t, http.StatusOK, res.Code)

	// The denial names every acceptable alternative, not just the first.
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, newGuardedRequest(t, true, nil, []string{"reports.view"}))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "missing permission: widgets.edit or widgets.view")
}
