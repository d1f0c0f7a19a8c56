package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"admin-auth-service/internal/models"
	"admin-auth-service/internal/pkg/log"
	"admin-auth-service/internal/pkg/redact"
	"admin-auth-service/internal/storage"
	"admin-auth-service/internal/token"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost — стоимость хэширования паролей.
	bcryptCost = 12

	minPasswordLen = 6
	minNicknameLen = 2
)

// SignUp регистрирует новый аккаунт с ролью USER.
// Пароль хэшируется bcrypt; уникальность email/nickname гарантируется БД.
func (s *Service) SignUp(ctx context.Context, email, nickname, password string) (*models.Account, error) {
	const op = "service.auth.SignUp"

	lg := log.From(ctx)

	email = normalizeEmail(email)
	nickname = strings.TrimSpace(nickname)

	if err := validateEmail(email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validateNickname(nickname); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: hash password: %w", op, err)
	}

	now := time.Now().UTC()
	account := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		Nickname:     nickname,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Уникальность нарушена по email или nickname; различаем повторным
			// поиском по email, чтобы вернуть точную причину.
			if _, lookupErr := s.storage.AccountByEmail(ctx, email); lookupErr == nil {
				return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
			}

			return nil, fmt.Errorf("%s: %w", op, ErrNicknameTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("account registered",
		"account_id", account.ID,
		"email", redact.Email(email),
	)

	return account, nil
}

// SignIn проверяет учётные данные и открывает сессию: выпускает пару токенов
// и сохраняет хэш refresh-токена на аккаунте (прежняя сессия вытесняется).
//
// Порядок проверок фиксирован:
//  1. неизвестный email — сравнение с decoy-хэшем для выравнивания времени
//     ответа, затем ErrInvalidCredentials;
//  2. заблокированный аккаунт — ErrAccountLocked (блокировка проверяется до
//     сравнения пароля, поэтому время ответа для заблокированного аккаунта
//     короче; принятый компромисс);
//  3. неверный пароль — атомарный инкремент счётчика; достижение порога
//     блокирует аккаунт, но эта попытка всё равно получает
//     ErrInvalidCredentials, ErrAccountLocked начнётся со следующей.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.TokenPair, *models.Account, error) {
	const op = "service.auth.SignIn"

	lg := log.From(ctx)

	email = normalizeEmail(email)

	account, err := s.storage.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.antiEnumerationCompare(password)
			s.metrics.signInFailure()

			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if account.Locked {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAccountLocked)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		s.metrics.signInFailure()

		reason := fmt.Sprintf("%d consecutive failed sign-in attempts", s.cfg.SignInFailLimit)

		locked, regErr := s.storage.RegisterFailedSignIn(ctx, account.ID, s.cfg.SignInFailLimit, reason, time.Now().UTC())
		if regErr != nil {
			lg.Error("failed to register sign-in failure",
				"account_id", account.ID,
				"error", regErr.Error(),
			)
		}

		if locked {
			s.metrics.lockout()
			lg.Warn("account locked after repeated sign-in failures",
				"account_id", account.ID,
				"email", redact.Email(email),
			)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if account.SignInFailedCount > 0 {
		if err := s.storage.ResetFailedSignIns(ctx, account.ID); err != nil {
			return nil, nil, fmt.Errorf("%s: reset failed sign-ins: %w", op, err)
		}
	}

	pair, err := s.openSession(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("sign-in succeeded", "account_id", account.ID)

	return pair, account, nil
}

// Refresh ротирует сессию по refresh-токену: проверяет подпись и маркер вида,
// сверяет хэш с хранимым и выпускает новую пару. Старый refresh-токен
// перестаёт действовать сразу после ротации.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.Account, error) {
	const op = "service.auth.Refresh"

	lg := log.From(ctx)

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	id, err := claims.AccountID()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	account, err := s.storage.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !account.HasSession() {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if !hashEqual(account.RefreshTokenHash, hashToken(refreshToken)) {
		s.metrics.tokenMismatch()
		lg.Warn("refresh token does not match stored session",
			"account_id", account.ID,
		)

		return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenMismatch)
	}

	pair, err := s.openSession(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.rotation()
	lg.Info("refresh session rotated", "account_id", account.ID)

	return pair, account, nil
}

// Logout снимает сессию по refresh-токену. Best-effort: любая ошибка
// (битый токен, отсутствующий аккаунт, несовпадение хэша, сбой БД)
// проглатывается — с точки зрения клиента логаут всегда успешен.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	const op = "service.auth.Logout"

	lg := log.From(ctx)

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return
	}

	id, err := claims.AccountID()
	if err != nil {
		return
	}

	// Сессия снимается только при совпадении хэша: устаревший refresh-токен
	// не должен разрывать сессию, открытую позже.
	cleared, err := s.storage.ClearRefreshSession(ctx, id, hashToken(refreshToken))
	if err != nil {
		lg.Warn("logout: failed to clear session",
			"account_id", id,
			"error", fmt.Errorf("%s: %w", op, err).Error(),
		)

		return
	}

	if cleared {
		lg.Info("session cleared", "account_id", id)
	}
}

// WhoAmI проверяет access-токен и возвращает профиль из его клеймов.
// Хранилище не затрагивается: источник истины о личности — сам токен.
func (s *Service) WhoAmI(ctx context.Context, accessToken string) (*models.Profile, error) {
	const op = "service.auth.WhoAmI"

	claims, err := s.issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	id, err := claims.AccountID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &models.Profile{
		ID:       id,
		Email:    claims.Email,
		Role:     models.Role(claims.Role),
		Nickname: claims.Nickname,
	}, nil
}

// openSession выпускает пару токенов и сохраняет хэш refresh-токена.
// Общий хвост SignIn и Refresh.
func (s *Service) openSession(ctx context.Context, account *models.Account) (*models.TokenPair, error) {
	now := time.Now().UTC()

	pair, err := s.issuer.Issue(token.Subject{
		ID:       account.ID,
		Email:    account.Email,
		Role:     account.Role,
		Nickname: account.Nickname,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	expiresAt := now.Add(s.cfg.RefreshTokenTTL)
	if err := s.storage.UpdateRefreshSession(ctx, account.ID, hashToken(pair.RefreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh session: %w", err)
	}

	return pair, nil
}

// antiEnumerationCompare выравнивает время ответа при входе по несуществующему
// email: выполняет bcrypt-сравнение с фиксированным decoy-хэшем, чтобы
// по латентности нельзя было отличить "нет аккаунта" от "неверный пароль".
func (s *Service) antiEnumerationCompare(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(s.cfg.DecoyPasswordHash), []byte(password))
}

// hashToken возвращает base64url(sha256(token)) — хранимое представление
// refresh-токена. Хэш фиксированной длины, сравнение — constant-time.
func hashToken(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func hashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	return nil
}

func validateNickname(nickname string) error {
	if utf8.RuneCountInString(nickname) < minNicknameLen {
		return ErrInvalidNickname
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}

	return nil
}
