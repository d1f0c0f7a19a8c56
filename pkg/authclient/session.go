// authclient — клиентская сторона сервиса аутентификации: хранение пары
// токенов, http.RoundTripper с прозрачной ротацией по 401 и типизированный
// клиент REST-эндпойнтов.
//
// Координация ротации: на Transport в любой момент не более одного сетевого
// вызова /auth/refresh; конкурентные запросы, получившие 401, встают в
// FIFO-очередь за результатом текущего раунда и повторяются ровно один раз
// с новым токеном.
package authclient

import (
	"errors"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Profile — данные аккаунта из клеймов access-токена.
// Декодируются без проверки подписи: подпись проверяет сервер,
// клиенту клеймы нужны только для отображения.
type Profile struct {
	ID       string
	Email    string
	Role     string
	Nickname string
}

type sessionClaims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	Nickname string `json:"nickname,omitempty"`
	jwt.RegisteredClaims
}

// Session хранит текущую пару токенов. Безопасна для конкурентного
// использования; Transport и Client разделяют один экземпляр.
type Session struct {
	mu      sync.Mutex
	access  string
	refresh string
	profile *Profile
}

// NewSession создаёт пустую (разлогиненную) сессию.
func NewSession() *Session {
	return &Session{}
}

// SetPair атомарно заменяет пару токенов (вход или ротация).
func (s *Session) SetPair(accessToken, refreshToken string) {
	profile := decodeProfile(accessToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = accessToken
	s.refresh = refreshToken
	s.profile = profile
}

// Clear сбрасывает сессию (логаут или невосстановимая ротация).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.profile = nil
}

// AccessToken возвращает текущий access-токен ("" — нет сессии).
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.access
}

// RefreshToken возвращает текущий refresh-токен ("" — нечем ротировать).
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refresh
}

// LoggedIn сообщает, есть ли активная сессия.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.access != ""
}

// Profile возвращает профиль из клеймов access-токена (nil — нет сессии
// или токен не разобрался).
func (s *Session) Profile() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return nil
	}

	p := *s.profile
	return &p
}

// decodeProfile разбирает клеймы без проверки подписи.
func decodeProfile(accessToken string) *Profile {
	if strings.Count(accessToken, ".") != 2 {
		return nil
	}

	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return nil
	}

	return &Profile{
		ID:       claims.Subject,
		Email:    claims.Email,
		Role:     claims.Role,
		Nickname: claims.Nickname,
	}
}

// ErrRefreshExhausted — ротация невозможна: refresh-токена нет
// (сессия не открывалась или уже снята).
var ErrRefreshExhausted = errors.New("authclient: no refresh token")
