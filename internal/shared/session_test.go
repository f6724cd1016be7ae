package shared_test

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
	_ "github.com/castellan/castellan/testing"
)

func newSessionManager(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func roundTrip(t *testing.T, manager *shared.SessionManager, sess *shared.Session) *shared.Session {
	t.Helper()
	ctx := context.Background()

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, manager.Commit(ctx, res, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: sess.ID})
	loaded, err := manager.Load(ctx, next)
	require.NoError(t, err)
	return loaded
}

func TestSessionPrincipalRoundTrip(t *testing.T) {
	manager := newSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)

	sess.SetPrincipal("7", "user")
	sess.SetAuthorization([]string{"member"}, []string{"widgets.view"})

	loaded := roundTrip(t, manager, sess)
	require.Equal(t, "7", loaded.PrincipalID())
	require.Equal(t, "user", loaded.PrincipalType())
	require.Equal(t, []string{"member"}, loaded.Roles())
	require.Equal(t, []string{"widgets.view"}, loaded.Permissions())
}

func TestSessionNilVersusEmptyPermissions(t *testing.T) {
	manager := newSessionManager(t)

	// Never attached: permissions stay nil through a round trip.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetPrincipal("7", "user")

	loaded := roundTrip(t, manager, sess)
	require.Nil(t, loaded.Permissions())

	// Attached but empty: the empty list survives as non-nil, which the
	// authorization guard treats as "checked, holds nothing".
	sess.SetAuthorization([]string{}, []string{})
	loaded = roundTrip(t, manager, sess)
	require.NotNil(t, loaded.Permissions())
	require.Empty(t, loaded.Permissions())
}

func TestSessionDestroy(t *testing.T) {
	manager := newSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	require.NoError(t, err)
	sess.SetPrincipal("7", "user")

	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, req, sess))

	manager.Destroy(sess)
	res = httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: sess.ID})
	loaded, err := manager.Load(ctx, next)
	require.NoError(t, err)
	require.Empty(t, loaded.PrincipalID())
}
