package authclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// mintAccess выпускает подписанный access-токен с заданными клеймами.
func mintAccess(t *testing.T, sub, email, role, nickname string) string {
	t.Helper()

	claims := sessionClaims{
		Email:    email,
		Role:     role,
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return raw
}

// authServer — управляемый сервер для тестов координатора:
// /protected отвечает 200 только на текущий validAccess,
// /auth/refresh ротирует пару (с необязательным гейтом для теста гонок).
type authServer struct {
	t *testing.T

	mu          sync.Mutex
	validAccess string

	unauthorized int64 // количество 401 на /protected
	refreshCalls int64

	refreshGate   chan struct{} // если не nil, refresh ждёт закрытия
	refreshStatus int           // 0 => 200
	server        *httptest.Server
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()

	s := &authServer{t: t, validAccess: "valid-0"}

	mux := http.NewServeMux()
	mux.HandleFunc("/protected", s.handleProtected)
	mux.HandleFunc("/auth/refresh", s.handleRefresh)

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)

	return s
}

func (s *authServer) handleProtected(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	valid := "Bearer " + s.validAccess
	s.mu.Unlock()

	if r.Header.Get("Authorization") != valid {
		atomic.AddInt64(&s.unauthorized, 1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *authServer) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.refreshGate != nil {
		<-s.refreshGate
	}

	n := atomic.AddInt64(&s.refreshCalls, 1)

	if s.refreshStatus != 0 {
		w.WriteHeader(s.refreshStatus)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthenticated","message":"unauthenticated"}}`))
		return
	}

	access := fmt.Sprintf("valid-%d", n)

	s.mu.Lock()
	s.validAccess = access
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  access,
		"refresh_token": fmt.Sprintf("refresh-%d", n),
	})
}

func (s *authServer) transport(onExpired func()) (*Transport, *Session) {
	session := NewSession()
	session.SetPair("stale", "refresh-0")

	return &Transport{
		Session:          session,
		RefreshURL:       s.server.URL + "/auth/refresh",
		OnSessionExpired: onExpired,
	}, session
}

func TestTransport_AttachesBearer(t *testing.T) {
	t.Parallel()

	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	session := NewSession()
	session.SetPair("my-access", "my-refresh")

	client := &http.Client{Transport: &Transport{Session: session, RefreshURL: srv.URL + "/auth/refresh"}}

	resp, err := client.Get(srv.URL + "/anything")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "Bearer my-access", seen)
}

func TestTransport_TransparentRetryOn401(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	tr, session := srv.transport(nil)
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.server.URL + "/protected")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Вызывающий не видит 401: ротация и повтор прозрачны.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.refreshCalls))
	require.Equal(t, "valid-1", session.AccessToken())
}

func TestTransport_ConcurrentRequests_SingleRefresh(t *testing.T) {
	t.Parallel()

	const k = 8

	srv := newAuthServer(t)
	srv.refreshGate = make(chan struct{})

	tr, _ := srv.transport(nil)
	client := &http.Client{Transport: tr}

	var wg sync.WaitGroup
	statuses := make([]int, k)

	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(srv.server.URL + "/protected")
			require.NoError(t, err)
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}

	// Дождёмся, пока все K запросов получат 401 и встанут за ротацией,
	// и только потом отпустим refresh-хендлер.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&srv.unauthorized) == k
	}, 5*time.Second, 5*time.Millisecond)
	close(srv.refreshGate)

	wg.Wait()

	// Ровно один сетевой вызов ротации на все K запросов,
	// каждый запрос повторён ровно один раз и завершился успехом.
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.refreshCalls))
	require.EqualValues(t, k, atomic.LoadInt64(&srv.unauthorized))
	for i, st := range statuses {
		require.Equal(t, http.StatusOK, st, "request %d", i)
	}
}

func TestTransport_RetriedRequest_SecondUnauthorizedIsTerminal(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	tr, _ := srv.transport(nil)
	client := &http.Client{Transport: tr}

	// Сервер продолжает отвечать 401 даже на свежий токен.
	srv.mu.Lock()
	srv.validAccess = "never-issued"
	srv.mu.Unlock()

	done := make(chan struct{})
	var status int

	go func() {
		defer close(done)
		resp, err := client.Get(srv.server.URL + "/protected")
		require.NoError(t, err)
		resp.Body.Close()
		status = resp.StatusCode
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("request did not finish: retry loop suspected")
	}

	// Один повтор, одна ротация, второй 401 уходит вызывающему как есть.
	require.Equal(t, http.StatusUnauthorized, status)
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.refreshCalls))
}

func TestTransport_NoRefreshToken_PropagatesOriginal401(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)

	var expired int64
	tr, session := srv.transport(func() { atomic.AddInt64(&expired, 1) })
	session.SetPair("stale", "") // access есть, ротировать нечем

	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.server.URL + "/protected")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, atomic.LoadInt64(&srv.refreshCalls))
	require.EqualValues(t, 1, atomic.LoadInt64(&expired))
	require.False(t, session.LoggedIn())
}

func TestTransport_RefreshRejected_TearsDownSession(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	srv.refreshStatus = http.StatusUnauthorized

	var expired int64
	tr, session := srv.transport(func() { atomic.AddInt64(&expired, 1) })
	client := &http.Client{Transport: tr}

	_, err := client.Get(srv.server.URL + "/protected")
	require.Error(t, err)
	require.Contains(t, err.Error(), "refresh rejected")

	require.False(t, session.LoggedIn())
	require.EqualValues(t, 1, atomic.LoadInt64(&expired))
}

func TestTransport_RefreshUnreachable_TearsDownSession(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)

	// Отдельный сервер под refresh, который закрываем заранее:
	// ротация упирается в отказ соединения.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	var expired int64
	tr, session := srv.transport(func() { atomic.AddInt64(&expired, 1) })
	tr.RefreshURL = dead.URL + "/auth/refresh"

	client := &http.Client{Transport: tr}

	_, err := client.Get(srv.server.URL + "/protected")
	require.Error(t, err)
	require.Contains(t, err.Error(), "refresh call")

	require.False(t, session.LoggedIn())
	require.EqualValues(t, 1, atomic.LoadInt64(&expired))
}

func TestTransport_RefreshRejected_FailsAllWaiters(t *testing.T) {
	t.Parallel()

	const k = 4

	srv := newAuthServer(t)
	srv.refreshGate = make(chan struct{})
	srv.refreshStatus = http.StatusUnauthorized

	var expired int64
	tr, session := srv.transport(func() { atomic.AddInt64(&expired, 1) })
	client := &http.Client{Transport: tr}

	var wg sync.WaitGroup
	errs := make([]error, k)

	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Get(srv.server.URL + "/protected")
		}(i)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&srv.unauthorized) == k
	}, 5*time.Second, 5*time.Millisecond)
	close(srv.refreshGate)

	wg.Wait()

	// Неуспех ротации достаётся и инициатору, и всем ожидающим.
	for i, err := range errs {
		require.Error(t, err, "request %d", i)
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.refreshCalls))
	require.False(t, session.LoggedIn())
	require.EqualValues(t, 1, atomic.LoadInt64(&expired))
}

func TestTransport_WaitersWokenInRegistrationOrder(t *testing.T) {
	t.Parallel()

	// Результат раунда раздаётся ожидающим в порядке постановки в очередь:
	// раунд с тремя ожидающими доставляет результат каналам 1, 2, 3 подряд.
	tr := &Transport{Session: NewSession()}

	round := &refreshRound{}
	tr.round = round

	chans := make([]chan refreshResult, 3)
	for i := range chans {
		chans[i] = make(chan refreshResult, 1)
		round.waiters = append(round.waiters, chans[i])
	}

	tr.mu.Lock()
	tr.round = nil
	waiters := round.waiters
	tr.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{access: "fresh"}
	}

	for i, ch := range chans {
		select {
		case res := <-ch:
			require.Equal(t, "fresh", res.access, "waiter %d", i)
		default:
			t.Fatalf("waiter %d was not signalled", i)
		}
	}
}

func TestTransport_NonReplayableBody_NotRetried(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	tr, _ := srv.transport(nil)

	// Тело без GetBody невоспроизводимо: повтор невозможен, 401 уходит как есть.
	req, err := http.NewRequest(http.MethodPost, srv.server.URL+"/protected", readerWithoutGetBody{})
	require.NoError(t, err)
	req.GetBody = nil

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, atomic.LoadInt64(&srv.refreshCalls))
}

type readerWithoutGetBody struct{}

func (readerWithoutGetBody) Read([]byte) (int, error) { return 0, io.EOF }
func (readerWithoutGetBody) Close() error             { return nil }
