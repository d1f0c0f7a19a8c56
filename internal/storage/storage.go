package storage

import (
	"context"
	"errors"
	"time"

	"admin-auth-service/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (аккаунт).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/nickname).
	ErrAlreadyExists = errors.New("already exists")
)

// AccountStorage выполняет операции над аккаунтами.
type AccountStorage interface {
	// SaveAccount создаёт новый аккаунт в БД.
	SaveAccount(ctx context.Context, account *models.Account) error
	// AccountByEmail находит аккаунт по email.
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// AccountByID находит аккаунт по ID.
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// SessionStorage выполняет операции над состоянием входа и сессией аккаунта.
//
// Единственное конкурентно-чувствительное поле на сервере — хэш refresh-токена;
// каждая мутация здесь — одиночный атомарный UPDATE по id аккаунта.
type SessionStorage interface {
	// RegisterFailedSignIn атомарно инкрементирует счётчик неудачных входов
	// и блокирует аккаунт, если счётчик достиг limit (фиксируя момент и причину).
	// Возвращает true, если аккаунт был заблокирован этим вызовом.
	RegisterFailedSignIn(ctx context.Context, id uuid.UUID, limit int, reason string, now time.Time) (bool, error)
	// ResetFailedSignIns сбрасывает счётчик неудачных входов в 0.
	ResetFailedSignIns(ctx context.Context, id uuid.UUID) error
	// UpdateRefreshSession записывает хэш нового refresh-токена и срок его
	// жизни (ротация: прежний хэш перезаписывается и становится недействительным).
	UpdateRefreshSession(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	// ClearRefreshSession снимает сессию, только если хранимый хэш совпадает
	// с переданным. Возвращает true, если сессия была снята этим вызовом.
	ClearRefreshSession(ctx context.Context, id uuid.UUID, hash string) (bool, error)
	// ClearExpiredSessions снимает все сессии с истёкшим refresh-токеном.
	ClearExpiredSessions(ctx context.Context, now time.Time) error
	// UnlockAccount снимает блокировку и обнуляет счётчик неудачных входов.
	// Вызывается только из административных инструментов.
	UnlockAccount(ctx context.Context, id uuid.UUID) error
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	AccountStorage
	SessionStorage
	Close()
}
