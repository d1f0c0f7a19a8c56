package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeService — минимальный сервер аутентификации: signin выдаёт пару,
// me отвечает профилем только на текущий access-токен, refresh ротирует.
type fakeService struct {
	t *testing.T

	validAccess  atomic.Value // string
	validRefresh atomic.Value // string
	refreshCalls int64
	logoutCalls  int64

	server *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	s := &fakeService{t: t}
	s.validAccess.Store("")
	s.validRefresh.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/signin", s.handleSignIn)
	mux.HandleFunc("/auth/refresh", s.handleRefresh)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/auth/me", s.handleMe)

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)

	return s
}

func (s *fakeService) issue(prefix string) (string, string) {
	access := mintAccess(s.t, "22222222-2222-2222-2222-222222222222",
		"admin@example.com", "SUPER_ADMIN", "root")
	refresh := prefix + "-refresh"

	s.validAccess.Store(access)
	s.validRefresh.Store(refresh)

	return access, refresh
}

func (s *fakeService) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	if in.Password != "Abcdef1!" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_credentials","message":"invalid credentials"}}`))
		return
	}

	access, refresh := s.issue("signin")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"account": map[string]string{
			"id": "22222222-2222-2222-2222-222222222222", "email": in.Email,
			"nickname": "root", "role": "SUPER_ADMIN",
		},
	})
}

func (s *fakeService) handleRefresh(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.refreshCalls, 1)

	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	if in.RefreshToken != s.validRefresh.Load().(string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthenticated","message":"unauthenticated"}}`))
		return
	}

	access, refresh := s.issue("rotated")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *fakeService) handleLogout(w http.ResponseWriter, _ *http.Request) {
	atomic.AddInt64(&s.logoutCalls, 1)
	_, _ = w.Write([]byte("{}"))
}

func (s *fakeService) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.validAccess.Load().(string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthenticated","message":"unauthenticated"}}`))
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{
		"id": "22222222-2222-2222-2222-222222222222", "email": "admin@example.com",
		"nickname": "root", "role": "SUPER_ADMIN",
	})
}

func TestClient_SignInAndMe(t *testing.T) {
	t.Parallel()

	srv := newFakeService(t)
	client := New(srv.server.URL, Options{})

	acc, err := client.SignIn(context.Background(), "admin@example.com", "Abcdef1!")
	require.NoError(t, err)
	require.Equal(t, "SUPER_ADMIN", acc.Role)
	require.True(t, client.Session().LoggedIn())

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", me.Email)
	require.EqualValues(t, 0, atomic.LoadInt64(&srv.refreshCalls))
}

func TestClient_SignIn_InvalidCredentials(t *testing.T) {
	t.Parallel()

	srv := newFakeService(t)
	client := New(srv.server.URL, Options{})

	_, err := client.SignIn(context.Background(), "admin@example.com", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "invalid_credentials", apiErr.Code)
	require.False(t, client.Session().LoggedIn())
}

func TestClient_Me_TransparentRecovery(t *testing.T) {
	t.Parallel()

	srv := newFakeService(t)
	client := New(srv.server.URL, Options{})

	_, err := client.SignIn(context.Background(), "admin@example.com", "Abcdef1!")
	require.NoError(t, err)

	// Сервер инвалидирует access-токен (истечение), refresh остаётся валиден.
	srv.validAccess.Store("rotated-away")

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "root", me.Nickname)

	// Ровно одна ротация, вызывающий 401 не увидел.
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.refreshCalls))
}

func TestClient_ExplicitRefresh(t *testing.T) {
	t.Parallel()

	srv := newFakeService(t)
	client := New(srv.server.URL, Options{})

	require.ErrorIs(t, client.Refresh(context.Background()), ErrRefreshExhausted)

	_, err := client.SignIn(context.Background(), "admin@example.com", "Abcdef1!")
	require.NoError(t, err)

	before := client.Session().RefreshToken()
	require.NoError(t, client.Refresh(context.Background()))
	require.NotEqual(t, before, client.Session().RefreshToken())
}

func TestClient_Logout(t *testing.T) {
	t.Parallel()

	srv := newFakeService(t)
	client := New(srv.server.URL, Options{})

	_, err := client.SignIn(context.Background(), "admin@example.com", "Abcdef1!")
	require.NoError(t, err)

	require.NoError(t, client.Logout(context.Background()))
	require.False(t, client.Session().LoggedIn())
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.logoutCalls))

	// Повторный логаут без сессии — no-op.
	require.NoError(t, client.Logout(context.Background()))
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.logoutCalls))
}

func TestClient_Logout_ClearsLocallyOnNetworkError(t *testing.T) {
	t.Parallel()

	srv := newFakeService(t)
	client := New(srv.server.URL, Options{Timeout: time.Second})

	_, err := client.SignIn(context.Background(), "admin@example.com", "Abcdef1!")
	require.NoError(t, err)

	srv.server.Close()

	err = client.Logout(context.Background())
	require.Error(t, err)
	// Локальная сессия снята несмотря на сетевой сбой.
	require.False(t, client.Session().LoggedIn())
}
