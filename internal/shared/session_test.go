package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "solarlink_session", "test-secret", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("42")
	sess.Set("csrf_token", "abc")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "solarlink_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// Replay the cookie on a second request.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	sess2, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	assert.Equal(t, "42", sess2.User())
	assert.Equal(t, "abc", sess2.Get("csrf_token"))
}

func TestSessionExpiry(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("42")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	mr.FastForward(2 * time.Hour)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(rec.Result().Cookies()[0])
	sess2, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	assert.Empty(t, sess2.User(), "expired session comes back fresh")
}

func TestSessionDestroy(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("42")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookie := rec.Result().Cookies()[0]

	sm.Destroy(sess)
	rec2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec2, req, sess))
	cleared := rec2.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	sess2, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	assert.Empty(t, sess2.User())
}

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newTestManager(t)
	cm := NewCSRFManager("csrf-secret")
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	token, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again, "token is stable per session")

	require.NoError(t, cm.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, cm.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, cm.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, cm.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)
}
