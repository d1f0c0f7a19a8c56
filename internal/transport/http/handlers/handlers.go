// handlers реализует REST-эндпойнты сервиса аутентификации поверх
// бизнес-слоя service. Формат ошибок — см. пакет apierrors.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"admin-auth-service/internal/rate"
	"admin-auth-service/internal/service"
)

// Handlers агрегирует зависимости HTTP-слоя.
type Handlers struct {
	Service *service.Service
	// Limiter ограничивает частоту попыток входа по client IP.
	// nil означает отсутствие лимита.
	Limiter rate.Limiter
}

func New(svc *service.Service, limiter rate.Limiter) *Handlers {
	return &Handlers{Service: svc, Limiter: limiter}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// clientIP извлекает IP клиента: первый адрес из X-Forwarded-For
// (сервис живёт за reverse proxy), иначе host-часть RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// bearerToken извлекает токен из Authorization: Bearer <token>.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}

	return ""
}
