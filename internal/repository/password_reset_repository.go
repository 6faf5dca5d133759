package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/database"
)

// PasswordResetRepository stores hashed password reset tokens.
type PasswordResetRepository struct {
	db *database.Gateway
}

// NewPasswordResetRepository constructs the repository.
func NewPasswordResetRepository(db *database.Gateway) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create persists a reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_resets (id, user_id, token_hash, expires_at, used_at, created_at) VALUES (:id, :user_id, :token_hash, :expires_at, :used_at, :created_at)`
	if _, err := r.db.NamedExec(ctx, query, reset); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

// FindByTokenHash returns the reset matching hash, locking it inside a transaction.
func (r *PasswordResetRepository) FindByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error) {
	query := `SELECT id, user_id, token_hash, expires_at, used_at, created_at FROM password_resets WHERE token_hash = $1`
	if database.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	var reset models.PasswordReset
	if err := r.db.Get(ctx, &reset, query, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find password reset: %w", err)
	}
	return &reset, nil
}

// MarkUsed consumes a reset. It reports false when the reset was already used.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string, ts time.Time) (bool, error) {
	affected, err := r.db.Exec(ctx, `UPDATE password_resets SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, ts)
	if err != nil {
		return false, fmt.Errorf("mark password reset used: %w", err)
	}
	return affected > 0, nil
}

// InvalidateForUser consumes every outstanding reset of a user.
func (r *PasswordResetRepository) InvalidateForUser(ctx context.Context, userID string, ts time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE password_resets SET used_at = $2 WHERE user_id = $1 AND used_at IS NULL`, userID, ts); err != nil {
		return fmt.Errorf("invalidate password resets: %w", err)
	}
	return nil
}

// DeleteExpired removes resets that expired or were used before cutoff.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	affected, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $1)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge password resets: %w", err)
	}
	return affected, nil
}
