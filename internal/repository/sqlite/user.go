package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/repository"
)

// UserDB implements repository.UserRepository.
type UserDB struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

// Upsert creates the user on first sign-in or refreshes the verification
// timestamp on subsequent sign-ins. Email is the stable external
// identifier, so the conflict target is the unique email column.
func (u *UserDB) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now()

	// Reuse the existing ID when the email is already registered so the
	// caller always gets the canonical internal ID back.
	existing, err := u.GetByEmail(ctx, user.Email)
	if err == nil {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
		if user.Name == "" {
			user.Name = existing.Name
		}
		user.UpdatedAt = now
		_, err = u.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, email_verified_at = ?, updated_at = ? WHERE id = ?`,
			user.Name, user.EmailVerifiedAt, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = u.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, email_verified_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.scanOne(u.conn.QueryRowContext(ctx,
		`SELECT id, email, name, email_verified_at, created_at, updated_at
		 FROM users WHERE id = ?`, id), id)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.scanOne(u.conn.QueryRowContext(ctx,
		`SELECT id, email, name, email_verified_at, created_at, updated_at
		 FROM users WHERE email = ?`, email), email)
}

func (u *UserDB) scanOne(row *sql.Row, key string) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Name,
		&user.EmailVerifiedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	return &user, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
