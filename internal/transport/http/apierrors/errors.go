// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход — ошибка бизнес-слоя (сентинелы пакета service), на выход:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Отдельного различения "нет аккаунта" / "неверный пароль" наружу нет:
// обе ситуации дают 401/invalid_credentials.
package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"admin-auth-service/internal/service"
)

// APIError — единый формат ошибки для фронта.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrBadRequest — локальная ошибка HTTP-слоя: битый JSON или неизвестные поля.
var ErrBadRequest = errors.New("bad request")

// ErrRateLimited — превышен лимит попыток входа с одного IP.
var ErrRateLimited = errors.New("rate limited")

// ToHTTP конвертирует ошибку бизнес-слоя в HTTP-статус и унифицированный ответ.
//
// err == nil — программная ошибка вызова: возвращаем 500/internal,
// чтобы не послать "200 OK" с телом ошибки и не замаскировать баг.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := mapError(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// mapError — таблица маппинга ошибок бизнес-слоя на HTTP/FE-код/сообщение.
func mapError(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_email", "invalid email format"
	case errors.Is(err, service.ErrInvalidNickname):
		return http.StatusBadRequest, "invalid_nickname", "nickname is too short"
	case errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "empty_password", "password is empty"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "weak_password", "password is too weak"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, "email_taken", "email already taken"
	case errors.Is(err, service.ErrNicknameTaken):
		return http.StatusBadRequest, "nickname_taken", "nickname already taken"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusUnauthorized, "account_locked", "account is locked"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenMismatch):
		// Несовпадение хэша наружу не отличается от прочих причин 401:
		// различение дало бы атакующему лишний сигнал.
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many attempts"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
