package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/repository"
)

// CreditDB implements repository.CreditRepository.
//
// Reserve and Refund run their read-modify-write inside a single
// transaction. This is the one concurrency-sensitive invariant in the
// system: two simultaneous reservations for the same user must never both
// succeed when only one credit remains. A read-then-write over two round
// trips would break that.
type CreditDB struct {
	conn *sql.DB
}

var _ repository.CreditRepository = (*CreditDB)(nil)

// Reserve decrements the user's balance by one, creating the row lazily at
// the default allowance minus one for first-time users. Returns the new
// balance, or apperror.ErrInsufficientCredits when the balance is
// exhausted (leaving the stored balance unchanged).
func (c *CreditDB) Reserve(ctx context.Context, userID string) (int, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning reserve tx: %w", err)
	}
	defer tx.Rollback()

	var credits int
	err = tx.QueryRowContext(ctx,
		`SELECT credits FROM user_credits WHERE user_id = ?`, userID,
	).Scan(&credits)

	switch {
	case err == sql.ErrNoRows:
		credits = repository.DefaultCredits - 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_credits (user_id, credits) VALUES (?, ?)`,
			userID, credits,
		); err != nil {
			return 0, fmt.Errorf("sqlite: creating credit row: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("sqlite: reading credits for %s: %w", userID, err)
	default:
		if credits <= 0 {
			return 0, apperror.InsufficientCredits()
		}
		credits--
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_credits SET credits = ? WHERE user_id = ?`,
			credits, userID,
		); err != nil {
			return 0, fmt.Errorf("sqlite: decrementing credits for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing reserve: %w", err)
	}

	return credits, nil
}

// Refund increments the balance by one. A missing row is created at the
// full default allowance — defensive, since refund only ever follows a
// reserve that would have created the row.
func (c *CreditDB) Refund(ctx context.Context, userID string) (int, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning refund tx: %w", err)
	}
	defer tx.Rollback()

	var credits int
	err = tx.QueryRowContext(ctx,
		`SELECT credits FROM user_credits WHERE user_id = ?`, userID,
	).Scan(&credits)

	switch {
	case err == sql.ErrNoRows:
		credits = repository.DefaultCredits
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_credits (user_id, credits) VALUES (?, ?)`,
			userID, credits,
		); err != nil {
			return 0, fmt.Errorf("sqlite: creating credit row: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("sqlite: reading credits for %s: %w", userID, err)
	default:
		credits++
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_credits SET credits = ? WHERE user_id = ?`,
			credits, userID,
		); err != nil {
			return 0, fmt.Errorf("sqlite: incrementing credits for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing refund: %w", err)
	}

	return credits, nil
}

// Balance returns the current balance without modifying it, defaulting to
// the starting allowance when no row exists yet.
func (c *CreditDB) Balance(ctx context.Context, userID string) (int, error) {
	var credits int
	err := c.conn.QueryRowContext(ctx,
		`SELECT credits FROM user_credits WHERE user_id = ?`, userID,
	).Scan(&credits)
	if err == sql.ErrNoRows {
		return repository.DefaultCredits, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading credits for %s: %w", userID, err)
	}
	return credits, nil
}
