package models

import (
	"time"

	"github.com/google/uuid"
)

// Account — учётная запись администратора.
//
// Ключевые инварианты:
//   - PasswordHash задаётся при создании и меняется только через явную
//     операцию смены пароля (bcrypt, plaintext нигде не хранится);
//   - RefreshTokenHash — хэш текущего refresh-токена; пустая строка означает
//     отсутствие активной сессии. Модель — одна активная сессия на аккаунт;
//   - аккаунт не удаляется физически: ближайший аналог — блокировка (Locked).
type Account struct {
	ID           uuid.UUID
	Email        string
	Nickname     string
	PasswordHash string
	Role         Role

	// Состояние блокировки после серии неудачных входов.
	SignInFailedCount int
	Locked            bool
	LockedAt          *time.Time
	LockedReason      string

	// Привязка сессии: хэш действующего refresh-токена и срок его жизни.
	RefreshTokenHash string
	RefreshExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSession сообщает, есть ли у аккаунта активная сессия.
func (a *Account) HasSession() bool {
	return a.RefreshTokenHash != ""
}
