package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Account — публичное представление аккаунта в ответах сервиса.
type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// APIError — ошибка сервиса в унифицированном конверте.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authclient: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Client — типизированный клиент сервиса аутентификации.
// Все запросы, кроме signin/signup/refresh/logout, идут через Transport
// и получают прозрачную ротацию по 401.
type Client struct {
	baseURL   string
	http      *http.Client
	session   *Session
	transport *Transport
}

// Options — необязательные параметры клиента.
type Options struct {
	// Base — нижележащий RoundTripper (nil — http.DefaultTransport).
	Base http.RoundTripper

	// Timeout ограничивает каждый HTTP-вызов; 0 — значение по умолчанию 30s.
	Timeout time.Duration

	// OnSessionExpired — хук невосстановимой ротации (например, редирект
	// на форму входа). Может быть nil.
	OnSessionExpired func()
}

// New создаёт клиент для сервиса по базовому URL (например "https://auth.internal").
func New(baseURL string, opts Options) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	session := NewSession()
	transport := &Transport{
		Base:             opts.Base,
		Session:          session,
		RefreshURL:       baseURL + "/auth/refresh",
		OnSessionExpired: opts.OnSessionExpired,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{Transport: transport, Timeout: timeout},
		session:   session,
		transport: transport,
	}
}

// Session возвращает сессию клиента (общую с Transport).
func (c *Client) Session() *Session {
	return c.session
}

// Transport возвращает RoundTripper клиента: его можно подложить в чужой
// http.Client, чтобы и его запросы получили Bearer и ротацию.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// SignUp регистрирует аккаунт. Сессию не открывает.
func (c *Client) SignUp(ctx context.Context, email, nickname, password string) (*Account, error) {
	var out Account
	err := c.post(WithBypass(ctx), "/auth/signup", map[string]string{
		"email":    email,
		"nickname": nickname,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// SignIn открывает сессию: пара токенов сохраняется в Session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Account, error) {
	var out struct {
		AccessToken  string  `json:"access_token"`
		RefreshToken string  `json:"refresh_token"`
		Account      Account `json:"account"`
	}

	err := c.post(WithBypass(ctx), "/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}

	c.session.SetPair(out.AccessToken, out.RefreshToken)

	return &out.Account, nil
}

// Refresh принудительно ротирует сессию (обычно не нужен: Transport
// делает это сам по 401).
func (c *Client) Refresh(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return ErrRefreshExhausted
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}

	err := c.post(WithBypass(ctx), "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, &out)
	if err != nil {
		return err
	}

	c.session.SetPair(out.AccessToken, out.RefreshToken)

	return nil
}

// Logout снимает сессию на сервере (best-effort) и чистит её локально.
// Локальная сессия сбрасывается даже при сетевой ошибке.
func (c *Client) Logout(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	c.session.Clear()

	if refreshToken == "" {
		return nil
	}

	return c.post(WithBypass(ctx), "/auth/logout", map[string]string{
		"refresh_token": refreshToken,
	}, &struct{}{})
}

// Me возвращает профиль текущей сессии. Идёт через Transport:
// истёкший access-токен ротируется прозрачно.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("authclient: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	var out Account
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("authclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("authclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	return decodeResponse(resp, out)
}

// decodeResponse разбирает успешный ответ в out, а ошибочный —
// в *APIError с сохранением HTTP-статуса.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("authclient: decode response: %w", err)
		}
		return nil
	}

	var envelope struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: "unexpected response"}
	}

	apiErr := envelope.Error
	apiErr.StatusCode = resp.StatusCode

	return &apiErr
}
