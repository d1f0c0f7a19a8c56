// token реализует выпуск и проверку пары access/refresh токенов.
//
// Оба токена — JWT, подписанные одним симметричным ключом (HS256) и несущие
// одинаковый набор клеймов {sub, email, role, nickname}. Refresh-токен
// дополнительно помечен клеймом isRefreshToken; вид токена определяется
// ТОЛЬКО этим маркером и никогда не выводится из срока жизни.
//
// Пакет не имеет побочных эффектов: вся персистентность (хранение хэша
// refresh-токена) — ответственность вызывающего слоя service.
package token

import (
	"errors"
	"fmt"
	"time"

	"admin-auth-service/internal/config"
	"admin-auth-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken — токен некорректен по формату/подписи/клеймам
	// или предъявлен токен не того вида (access вместо refresh и наоборот).
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
)

// Claims — полезная нагрузка токена.
type Claims struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	Nickname       string `json:"nickname,omitempty"`
	IsRefreshToken bool   `json:"isRefreshToken,omitempty"`
	jwt.RegisteredClaims
}

// AccountID возвращает идентификатор аккаунта из клейма sub.
func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return id, nil
}

// Subject — данные аккаунта, попадающие в клеймы выпускаемых токенов.
type Subject struct {
	ID       uuid.UUID
	Email    string
	Role     models.Role
	Nickname string
}

// Issuer выпускает и проверяет токены. Экземпляр неизменяем после создания
// и безопасен для конкурентного использования.
type Issuer struct {
	cfg config.AuthConfig
}

// New создаёт Issuer с параметрами из конфигурации.
func New(cfg config.AuthConfig) *Issuer {
	return &Issuer{cfg: cfg}
}

// Issue выпускает пару токенов для аккаунта. Чистая криптографическая
// операция: ничего не сохраняет.
func (i *Issuer) Issue(sub Subject, now time.Time) (*models.TokenPair, error) {
	const op = "token.Issue"

	access, err := i.sign(sub, now, i.cfg.AccessTokenTTL, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := i.sign(sub, now, i.cfg.RefreshTokenTTL, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: now.Add(i.cfg.AccessTokenTTL).UTC(),
	}, nil
}

// VerifyAccess проверяет access-токен. Refresh-токен, предъявленный как
// access, отклоняется по маркеру.
func (i *Issuer) VerifyAccess(tokenStr string) (*Claims, error) {
	const op = "token.VerifyAccess"

	claims, err := i.parse(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.IsRefreshToken {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// VerifyRefresh проверяет refresh-токен: подпись, срок и маркер isRefreshToken.
// Access-токен, предъявленный на ротацию, отклоняется.
func (i *Issuer) VerifyRefresh(tokenStr string) (*Claims, error) {
	const op = "token.VerifyRefresh"

	claims, err := i.parse(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !claims.IsRefreshToken {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

func (i *Issuer) sign(sub Subject, now time.Time, ttl time.Duration, refresh bool) (string, error) {
	claims := Claims{
		Email:          sub.Email,
		Role:           sub.Role.String(),
		Nickname:       sub.Nickname,
		IsRefreshToken: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings(i.cfg.Audience),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return t.SignedString([]byte(i.cfg.JWTSecret))
}

func (i *Issuer) parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}

			return []byte(i.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}

	if _, err := claims.AccountID(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
