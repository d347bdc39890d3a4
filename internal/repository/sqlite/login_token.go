package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/repository"
)

// LoginTokenDB implements repository.LoginTokenRepository.
type LoginTokenDB struct {
	conn *sql.DB
}

var _ repository.LoginTokenRepository = (*LoginTokenDB)(nil)

// Create inserts a magic-link token record. The caller supplies the ID and
// bcrypt hash; the raw token never touches the database.
func (l *LoginTokenDB) Create(ctx context.Context, token *model.LoginToken) error {
	token.CreatedAt = time.Now()

	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO login_tokens (id, email, token_hash, expires_at, consumed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID, token.Email, token.TokenHash,
		token.ExpiresAt, token.ConsumedAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating login token: %w", err)
	}

	return nil
}

func (l *LoginTokenDB) GetByID(ctx context.Context, id string) (*model.LoginToken, error) {
	var token model.LoginToken
	err := l.conn.QueryRowContext(ctx,
		`SELECT id, email, token_hash, expires_at, consumed_at, created_at
		 FROM login_tokens WHERE id = ?`, id,
	).Scan(
		&token.ID, &token.Email, &token.TokenHash,
		&token.ExpiresAt, &token.ConsumedAt, &token.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("login token", id)
		}
		return nil, fmt.Errorf("sqlite: getting login token %s: %w", id, err)
	}
	return &token, nil
}

func (l *LoginTokenDB) MarkConsumed(ctx context.Context, id string) error {
	result, err := l.conn.ExecContext(ctx,
		`UPDATE login_tokens SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: consuming login token %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either missing or already consumed — both mean the token is
		// unusable, so report it the same way.
		return apperror.NotFound("login token", id)
	}

	return nil
}
