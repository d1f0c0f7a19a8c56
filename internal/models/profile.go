package models

import "github.com/google/uuid"

// Profile — минимальный профиль, извлекаемый из клеймов access-токена.
type Profile struct {
	ID       uuid.UUID
	Email    string
	Role     Role
	Nickname string
}
