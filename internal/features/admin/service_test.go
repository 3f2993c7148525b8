package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres/pgtest"
	"serotonyl.ru/green-earth/internal/features/economy"
)

// testHash: хеш в том же формате, что выдаёт scripts/generate_hash.go, с лёгкими параметрами.
func testHash(t *testing.T, password string) string {
	t.Helper()
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	hash := argon2.IDKey([]byte(password), salt, 1, 64, 1, 32)
	return fmt.Sprintf("$argon2id$v=19$m=64,t=1,p=1$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(hash))
}

func TestVerifyArgon2id(t *testing.T) {
	hash := testHash(t, "зелёная-земля")

	require.True(t, verifyArgon2id("зелёная-земля", hash))
	require.False(t, verifyArgon2id("зелёная-земл", hash))
	require.False(t, verifyArgon2id("зелёная-земля", "not-a-hash"))
	require.False(t, verifyArgon2id("x", "$bcrypt$v=19$m=64,t=1,p=1$AAAA$AAAA"))
	require.False(t, verifyArgon2id("x", "$argon2id$v=19$m=64,t=1,p=1$!!!$AAAA"))
}

func TestTokensAreRandomAndHashed(t *testing.T) {
	a, err := generateSecureToken()
	require.NoError(t, err)
	b, err := generateSecureToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, hashToken(a), 64)
	require.Equal(t, hashToken(a), hashToken(a))
}

type fakeReconciler struct{ drifts []economy.Drift }

func (f *fakeReconciler) ReconcileAll(context.Context) ([]economy.Drift, error) {
	return f.drifts, nil
}

type fakeSweeper struct{ olderThan time.Duration }

func (f *fakeSweeper) ExpireStale(_ context.Context, olderThan time.Duration) (int, error) {
	f.olderThan = olderThan
	return 2, nil
}

func newTestService(t *testing.T) (*Service, *fakeReconciler, *fakeSweeper) {
	pool := pgtest.NewPool(t)
	rec := &fakeReconciler{}
	sw := &fakeSweeper{}
	return NewService(NewRepository(pool), testHash(t, "secret"), time.Hour, rec, sw, 45*time.Second), rec, sw
}

func TestLoginLocksAfterThreeFailures(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < MaxFailedAttempts; i++ {
		_, err := s.Login(ctx, "10.0.0.1", "guess")
		require.ErrorIs(t, err, common.ErrWrongPassword)
	}
	_, err := s.Login(ctx, "10.0.0.1", "secret")
	require.ErrorIs(t, err, common.ErrTooManyAttempts)

	// другой адрес не заблокирован
	session, err := s.Login(ctx, "10.0.0.2", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	// через час блокировка снимается
	s.now = func() time.Time { return time.Now().Add(AttemptWindow + time.Minute) }
	_, err = s.Login(ctx, "10.0.0.1", "secret")
	require.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Authorize(ctx, "")
	require.ErrorIs(t, err, common.ErrNotAdmin)

	session, err := s.Login(ctx, "127.0.0.1", "secret")
	require.NoError(t, err)

	got, err := s.Authorize(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)

	require.NoError(t, s.Logout(ctx, session.Token))
	_, err = s.Authorize(ctx, session.Token)
	require.ErrorIs(t, err, common.ErrNotAdmin)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, rec, sw := newTestService(t)
	user := uuid.New()
	rec.drifts = []economy.Drift{{UserID: user, Balance: 120, LedgerSum: 100}}

	r := gin.New()
	NewHandler(s).Register(r.Group("/api/v1"))

	do := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(TokenHeader, token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/v1/admin/reconciliation", "", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(http.MethodPost, "/api/v1/admin/sessions", `{"password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(http.MethodPost, "/api/v1/admin/sessions", `{"password":"secret"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	w = do(http.MethodGet, "/api/v1/admin/reconciliation", "", session.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Count  int             `json:"count"`
		Drifts []economy.Drift `json:"drifts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 1, report.Count)
	require.Equal(t, user, report.Drifts[0].UserID)

	w = do(http.MethodPost, "/api/v1/admin/calls/sweep", "", session.Token)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"expired":2}`, w.Body.String())
	require.Equal(t, 45*time.Second, sw.olderThan)

	w = do(http.MethodDelete, "/api/v1/admin/sessions", "", session.Token)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(http.MethodPost, "/api/v1/admin/calls/sweep", "", session.Token)
	require.Equal(t, http.StatusForbidden, w.Code)
}
