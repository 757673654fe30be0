package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

func (r *Repository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	return r.dbpool.QueryRowContext(ctx, query, token.Token, token.UserID, token.ExpiresAt).Scan(&token.CreatedAt)
}

func (r *Repository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT user_id, expires_at, created_at
		FROM refresh_tokens WHERE token = $1
	`

	record := &domain.RefreshToken{
		Token: token,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, token).Scan(&record.UserID, &record.ExpiresAt, &record.CreatedAt); err != nil {
		return nil, notFound(err)
	}

	return record, nil
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, token string) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

func (r *Repository) CreatePasswordResetToken(ctx context.Context, token *domain.PasswordResetToken) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO password_reset_tokens (token, user_id, email, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	args := []any{token.Token, token.UserID, token.Email, token.ExpiresAt}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&token.CreatedAt)
}

// ResetPassword 消费重置令牌，更新密码并作废该用户的所有重置令牌和刷新令牌。
// DELETE ... RETURNING 会锁住令牌所在的行，并发请求中后到的一方删除不到任何行。
func (r *Repository) ResetPassword(ctx context.Context, token string, passwordHash string) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var userID string
	query := `DELETE FROM password_reset_tokens WHERE token = $1 AND expires_at > NOW() RETURNING user_id`
	if err := tx.QueryRowContext(ctx, query, token).Scan(&userID); err != nil {
		return notFound(err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return err
	}

	return tx.Commit()
}
