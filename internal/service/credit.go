// Package service contains the business logic layer: validation, ownership
// rules, and the generation orchestration. Services accept primitives and
// return domain models plus apperror-typed errors; the handler layer
// translates those to HTTP.
package service

import (
	"context"
	"log/slog"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/repository"
)

// CreditService fronts the per-user credit ledger.
//
// Reservation and refund are thin passthroughs — atomicity lives in the
// repository transaction — but routing them through here gives every credit
// movement a log line.
type CreditService struct {
	credits repository.CreditRepository
	logger  *slog.Logger
}

func NewCreditService(credits repository.CreditRepository, logger *slog.Logger) *CreditService {
	return &CreditService{
		credits: credits,
		logger:  logger,
	}
}

// Balance returns the caller's current credit balance.
func (s *CreditService) Balance(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperror.Unauthenticated()
	}
	return s.credits.Balance(ctx, userID)
}

// Reserve consumes one credit ahead of a billable operation. The returned
// balance reflects the reservation.
func (s *CreditService) Reserve(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperror.Unauthenticated()
	}

	balance, err := s.credits.Reserve(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("credit reserved",
		slog.String("userID", userID),
		slog.Int("balance", balance),
	)
	return balance, nil
}

// Refund returns a previously reserved credit after a downstream failure.
func (s *CreditService) Refund(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperror.Unauthenticated()
	}

	balance, err := s.credits.Refund(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("credit refunded",
		slog.String("userID", userID),
		slog.Int("balance", balance),
	)
	return balance, nil
}
