// service содержит бизнес-логику сервиса аутентификации:
// регистрацию, вход с политикой блокировки, ротацию refresh-токенов,
// логаут и проверку access-токенов. Работа с хранилищем — через
// интерфейсы пакета storage, выпуск токенов — через пакет token.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном storage.Storage.
//   - Ошибки возвращаются наружу и маппятся транспортом на HTTP-статусы
//     (см. комментарии к переменным ошибок ниже).
//   - Сессионная модель: один активный refresh-токен на аккаунт; на сервере
//     хранится только его хэш, перезаписываемый при каждой ротации.
package service

import (
	"errors"

	"admin-auth-service/internal/config"
	"admin-auth-service/internal/storage"
	"admin-auth-service/internal/token"
)

var (
	// ErrInvalidCredentials — пара email/пароль неверна или аккаунт не найден.
	// Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked — аккаунт заблокирован после серии неудачных входов;
	// снимается только административным сбросом. Транспорт: HTTP 401.
	ErrAccountLocked = errors.New("account locked")

	// ErrInvalidToken — токен некорректен по формату/подписи/сроку/виду,
	// либо у аккаунта нет активной сессии. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenMismatch — refresh-токен валиден криптографически, но не
	// совпадает с хранимым хэшем: повторное использование ротированного
	// токена или реплей. Событие безопасности, логируется отдельно.
	// Транспорт: HTTP 401.
	ErrTokenMismatch = errors.New("refresh token mismatch")

	// ErrEmailTaken — e-mail уже занят другим аккаунтом. Транспорт: HTTP 400.
	ErrEmailTaken = errors.New("email already taken")

	// ErrNicknameTaken — nickname уже занят. Транспорт: HTTP 400.
	ErrNicknameTaken = errors.New("nickname already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidNickname — nickname короче двух символов. Транспорт: HTTP 400.
	ErrInvalidNickname = errors.New("invalid nickname")

	// ErrWeakPassword — пароль короче минимальной длины. Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику сервиса аутентификации.
type Service struct {
	storage storage.Storage
	issuer  *token.Issuer
	cfg     config.AuthConfig
	metrics *Metrics // может быть nil, если метрики не сконфигурированы
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, issuer *token.Issuer, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		issuer:  issuer,
		cfg:     cfg,
	}
}

// SetMetrics устанавливает доменные метрики (опционально).
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}
