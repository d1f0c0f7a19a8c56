package handlers

import (
	"time"

	"admin-auth-service/internal/models"
)

// signUpRequest — тело POST /auth/signup.
type signUpRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// signInRequest — тело POST /auth/signin.
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest — тело POST /auth/refresh и /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// accountResponse — публичное представление аккаунта (без хэшей).
type accountResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// sessionResponse — ответ signin/refresh: пара токенов + аккаунт.
type sessionResponse struct {
	AccessToken     string          `json:"access_token"`
	RefreshToken    string          `json:"refresh_token"`
	AccessExpiresAt time.Time       `json:"access_expires_at"`
	Account         accountResponse `json:"account"`
}

func accountFromModel(a *models.Account) accountResponse {
	return accountResponse{
		ID:       a.ID.String(),
		Email:    a.Email,
		Nickname: a.Nickname,
		Role:     a.Role.String(),
	}
}

func sessionFromModel(pair *models.TokenPair, a *models.Account) sessionResponse {
	return sessionResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		Account:         accountFromModel(a),
	}
}

func profileResponse(p *models.Profile) accountResponse {
	return accountResponse{
		ID:       p.ID.String(),
		Email:    p.Email,
		Nickname: p.Nickname,
		Role:     p.Role.String(),
	}
}
