package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

type ctxKeyBypass struct{}
type ctxKeyRetried struct{}

// WithBypass помечает запрос как служебный: Transport не навешивает
// Authorization и не реагирует на 401. Используется для самих вызовов
// /auth/refresh и для логаута.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyBypass{}, true)
}

func isBypass(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyBypass{}).(bool)
	return v
}

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRetried{}, true)
}

func wasRetried(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyRetried{}).(bool)
	return v
}

// refreshRound — один раунд ротации. Каждый раунд владеет собственным
// списком ожидающих; завершённый раунд никогда не получает новых —
// опоздавшие начинают следующий.
type refreshRound struct {
	waiters []chan refreshResult
}

type refreshResult struct {
	access string
	err    error
}

// Transport — http.RoundTripper с прозрачной ротацией сессии.
//
// Поведение на 401:
//   - запрос, уже повторённый после ротации, второй раз не повторяется:
//     401 уходит вызывающему как есть;
//   - если раунд ротации уже идёт — запрос ждёт его результата в порядке
//     регистрации и повторяется ровно один раз с новым токеном;
//   - иначе запрос начинает раунд сам: успех будит ожидающих в порядке
//     очереди, неуспех сносит сессию у всех.
//
// Порядок очереди гарантирует только порядок побудки: сами повторы
// уходят в сеть из горутин ожидающих и между собой не упорядочены.
//
// Начатый раунд не отменяется: отмена контекста инициатора отцепляет только
// его самого, сетевой вызов доводится до конца ради остальных ожидающих.
type Transport struct {
	// Base выполняет сетевые вызовы; nil означает http.DefaultTransport.
	Base http.RoundTripper

	// Session — общая с Client сессия.
	Session *Session

	// RefreshURL — абсолютный URL POST /auth/refresh.
	RefreshURL string

	// OnSessionExpired вызывается один раз на каждую невосстановимую
	// ротацию (аналог редиректа на форму входа). Может быть nil.
	OnSessionExpired func()

	mu    sync.Mutex
	round *refreshRound
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}

	return http.DefaultTransport
}

// RoundTrip реализует http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isBypass(req.Context()) {
		return t.base().RoundTrip(req)
	}

	resp, err := t.send(req, t.Session.AccessToken())
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// Повторённый запрос, снова получивший 401, терминален.
	if wasRetried(req.Context()) {
		return resp, nil
	}

	// Повтор возможен только если тело воспроизводимо.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	access, rerr := t.refresh(req.Context())
	if rerr != nil {
		if errors.Is(rerr, ErrRefreshExhausted) {
			// Ротация невозможна (нечем): исходный 401 уходит вызывающему.
			return resp, nil
		}

		closeBody(resp)
		return nil, rerr
	}

	closeBody(resp)

	retry := req.Clone(withRetried(req.Context()))
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, fmt.Errorf("authclient: reread request body: %w", berr)
		}
		retry.Body = body
	}

	return t.send(retry, access)
}

// send выполняет запрос с заданным access-токеном.
func (t *Transport) send(req *http.Request, access string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if access != "" {
		out.Header.Set("Authorization", "Bearer "+access)
	}

	return t.base().RoundTrip(out)
}

// refresh возвращает свежий access-токен: либо ждёт идущий раунд,
// либо проводит собственный.
func (t *Transport) refresh(ctx context.Context) (string, error) {
	t.mu.Lock()

	if t.round != nil {
		ch := make(chan refreshResult, 1)
		t.round.waiters = append(t.round.waiters, ch)
		t.mu.Unlock()

		select {
		case res := <-ch:
			return res.access, res.err
		case <-ctx.Done():
			// Ожидающий отцепляется, раунд продолжается без него.
			return "", ctx.Err()
		}
	}

	round := &refreshRound{}
	t.round = round
	t.mu.Unlock()

	access, err := t.doRefresh()

	// Снимаем раунд до побудки: опоздавшие начнут новый, а не прицепятся
	// к завершённому.
	t.mu.Lock()
	t.round = nil
	waiters := round.waiters
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{access: access, err: err}
	}

	return access, err
}

// doRefresh — сетевой вызов /auth/refresh. Выполняется на context.Background:
// результат нужен всем ожидающим, не только инициатору.
func (t *Transport) doRefresh() (string, error) {
	refreshToken := t.Session.RefreshToken()
	if refreshToken == "" {
		t.teardown()
		return "", ErrRefreshExhausted
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", fmt.Errorf("authclient: marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(WithBypass(context.Background()),
		http.MethodPost, t.RefreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("authclient: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		// Провал ротации сносит сессию, сетевой в том числе:
		// судьба пары на сервере после недоставленного ответа неизвестна.
		t.teardown()
		return "", fmt.Errorf("authclient: refresh call: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		t.teardown()
		return "", fmt.Errorf("authclient: refresh rejected: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.teardown()
		return "", fmt.Errorf("authclient: decode refresh response: %w", err)
	}

	t.Session.SetPair(out.AccessToken, out.RefreshToken)

	return out.AccessToken, nil
}

// teardown сбрасывает сессию и один раз дёргает хук истечения.
func (t *Transport) teardown() {
	t.Session.Clear()

	if t.OnSessionExpired != nil {
		t.OnSessionExpired()
	}
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}
}
