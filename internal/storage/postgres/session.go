package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admin-auth-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RegisterFailedSignIn атомарно инкрементирует счётчик неудачных входов и,
// если счётчик достиг limit, блокирует аккаунт в том же UPDATE.
// Выполняется одним запросом, чтобы параллельные неудачные входы
// не теряли инкременты и не блокировали аккаунт дважды.
func (s *Storage) RegisterFailedSignIn(ctx context.Context, id uuid.UUID, limit int, reason string, now time.Time) (bool, error) {
	const op = "storage.postgres.RegisterFailedSignIn"

	query := `
		UPDATE accounts
		SET signin_failed_count = signin_failed_count + 1,
		    locked        = (signin_failed_count + 1 >= $2),
		    locked_at     = CASE WHEN signin_failed_count + 1 >= $2 THEN $4 ELSE locked_at END,
		    locked_reason = CASE WHEN signin_failed_count + 1 >= $2 THEN $3 ELSE locked_reason END,
		    updated_at    = $4
		WHERE id = $1 AND locked = FALSE
		RETURNING locked
	`

	var locked bool
	err := s.db.QueryRow(ctx, query, id, limit, reason, now).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return locked, nil
}

// ResetFailedSignIns сбрасывает счётчик неудачных входов в 0.
func (s *Storage) ResetFailedSignIns(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ResetFailedSignIns"

	query := `
		UPDATE accounts
		SET signin_failed_count = 0, updated_at = NOW()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// UpdateRefreshSession записывает хэш нового refresh-токена и срок его жизни.
// Прежний хэш перезаписывается: старый refresh-токен с этого момента
// недействителен даже при повторном предъявлении (ротация).
func (s *Storage) UpdateRefreshSession(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	const op = "storage.postgres.UpdateRefreshSession"

	query := `
		UPDATE accounts
		SET refresh_token_hash = $2, refresh_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ClearRefreshSession снимает сессию, только если хранимый хэш совпадает с переданным.
// Возвращает:
//
//	(true, nil)  — сессия была активна и снята этим вызовом;
//	(false, nil) — хэш не совпал или сессии уже нет (гонка с ротацией/логаутом);
//	(false, err) — ошибка БД.
func (s *Storage) ClearRefreshSession(ctx context.Context, id uuid.UUID, hash string) (bool, error) {
	const op = "storage.postgres.ClearRefreshSession"

	query := `
		UPDATE accounts
		SET refresh_token_hash = '', refresh_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2 AND refresh_token_hash <> ''
	`

	cmdTag, err := s.db.Exec(ctx, query, id, hash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected() > 0, nil
}

// ClearExpiredSessions снимает все сессии с истёкшим refresh-токеном.
func (s *Storage) ClearExpiredSessions(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.ClearExpiredSessions"

	query := `
		UPDATE accounts
		SET refresh_token_hash = '', refresh_expires_at = NULL, updated_at = NOW()
		WHERE refresh_token_hash <> '' AND refresh_expires_at <= $1
	`

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UnlockAccount снимает блокировку прямым сбросом полей.
// Административная операция; HTTP-поверхности у неё нет.
func (s *Storage) UnlockAccount(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.UnlockAccount"

	query := `
		UPDATE accounts
		SET locked = FALSE, locked_at = NULL, locked_reason = '',
		    signin_failed_count = 0, updated_at = NOW()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
