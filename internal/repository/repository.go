// Package repository declares the storage interfaces consumed by the
// service layer. The sqlite subpackage provides the concrete
// implementation; tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/martinbavio/photalabs/internal/model"
)

// DefaultCredits is the starting allowance granted to every user. The
// credit row is created lazily on first reservation, so a user with no row
// has an effective balance of DefaultCredits.
const DefaultCredits = 20

type UserRepository interface {
	// Upsert creates the user on first sign-in (keyed by email) and
	// refreshes EmailVerifiedAt on subsequent sign-ins. The user's ID is
	// populated on return.
	Upsert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type LoginTokenRepository interface {
	Create(ctx context.Context, token *model.LoginToken) error
	GetByID(ctx context.Context, id string) (*model.LoginToken, error)
	// MarkConsumed stamps the token so it can never be redeemed twice.
	MarkConsumed(ctx context.Context, id string) error
}

type CharacterRepository interface {
	Create(ctx context.Context, character *model.Character) error
	GetByID(ctx context.Context, id string) (*model.Character, error)
	// ListByUser returns the user's characters newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Character, error)
	Update(ctx context.Context, character *model.Character) error
	Delete(ctx context.Context, id string) error
}

// GenerationRepository is append-only: records are created and listed,
// never updated or deleted.
type GenerationRepository interface {
	Create(ctx context.Context, generation *model.Generation) error
	GetByID(ctx context.Context, id string) (*model.Generation, error)
	// ListByUser returns the user's generations newest first.
	// limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Generation, error)
}

// CreditRepository is the per-user credit ledger.
//
// Reserve must perform its read-modify-write inside a single atomic
// transaction: two concurrent reservations for the same user must never
// both succeed when only one credit remains.
type CreditRepository interface {
	// Reserve decrements the balance by one and returns the new balance.
	// A missing row is created at DefaultCredits-1. Fails with
	// apperror.ErrInsufficientCredits when the balance is exhausted.
	Reserve(ctx context.Context, userID string) (int, error)
	// Refund increments the balance by one and returns the new balance.
	// A missing row is created at DefaultCredits (defensive; refund is only
	// ever called after a prior reserve).
	Refund(ctx context.Context, userID string) (int, error)
	// Balance returns the current balance, defaulting to DefaultCredits
	// when no row exists.
	Balance(ctx context.Context, userID string) (int, error)
}
