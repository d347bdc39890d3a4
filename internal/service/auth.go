package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/auth"
	"github.com/martinbavio/photalabs/internal/mailer"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/repository"
)

// MagicLinkDuration is how long an emailed sign-in link stays redeemable.
const MagicLinkDuration = 15 * time.Minute

// AuthService implements passwordless magic-link sign-in.
//
// Flow: RequestMagicLink mails a one-time token; VerifyMagicLink redeems
// it, upserts the user, and issues a session JWT. Only a bcrypt hash of
// the token is ever stored, so a leaked database cannot mint valid links.
type AuthService struct {
	users   repository.UserRepository
	tokens  repository.LoginTokenRepository
	credits repository.CreditRepository
	mail    mailer.Mailer
	jwt     *auth.TokenService
	baseURL string
	logger  *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.LoginTokenRepository,
	credits repository.CreditRepository,
	mail mailer.Mailer,
	jwt *auth.TokenService,
	baseURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		credits: credits,
		mail:    mail,
		jwt:     jwt,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// RequestMagicLink generates a single-use token for the address and emails
// a sign-in link carrying it. The raw token exists only inside that URL.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.ValidationFailed("email", "invalid email address")
	}

	rawToken, err := randomToken()
	if err != nil {
		return fmt.Errorf("generating magic-link token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing magic-link token: %w", err)
	}

	token := &model.LoginToken{
		ID:        xid.New().String(),
		Email:     email,
		TokenHash: string(hash),
		ExpiresAt: time.Now().Add(MagicLinkDuration),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return fmt.Errorf("storing magic-link token: %w", err)
	}

	link := fmt.Sprintf("%s/auth/verify?id=%s&token=%s",
		s.baseURL, url.QueryEscape(token.ID), url.QueryEscape(rawToken))

	if err := s.mail.SendMagicLink(ctx, email, link); err != nil {
		s.logger.Error("failed to send magic link",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("sending magic link: %w", err)
	}

	s.logger.Info("magic link sent", slog.String("email", email))
	return nil
}

// VerifyMagicLink redeems a magic-link token. On success the user is
// upserted (created on first sign-in) and a session JWT is returned.
//
// Every failure mode — unknown token, wrong token, expired, already
// consumed — reports the same Unauthenticated error so the response leaks
// nothing about which check failed.
func (s *AuthService) VerifyMagicLink(ctx context.Context, tokenID, rawToken string) (string, *model.User, error) {
	if tokenID == "" || rawToken == "" {
		return "", nil, apperror.Unauthenticated()
	}

	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return "", nil, apperror.Unauthenticated()
	}

	if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(rawToken)) != nil {
		return "", nil, apperror.Unauthenticated()
	}
	if token.ConsumedAt != nil || time.Now().After(token.ExpiresAt) {
		return "", nil, apperror.Unauthenticated()
	}

	// Consume before issuing the session; MarkConsumed fails if another
	// request redeemed the token first.
	if err := s.tokens.MarkConsumed(ctx, tokenID); err != nil {
		return "", nil, apperror.Unauthenticated()
	}

	user := &model.User{
		Email: token.Email,
		Name:  nameFromEmail(token.Email),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return "", nil, fmt.Errorf("upserting user: %w", err)
	}

	session, err := s.jwt.Generate(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issuing session token: %w", err)
	}

	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return session, user, nil
}

// Viewer returns the authenticated user's profile with their current
// credit balance.
func (s *AuthService) Viewer(ctx context.Context, userID string) (*model.Viewer, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	credits, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading credit balance: %w", err)
	}

	return &model.Viewer{User: *user, Credits: credits}, nil
}

// randomToken returns 32 bytes of hex-encoded entropy.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// nameFromEmail derives a default display name from the address's local
// part. Users created via magic link have no profile form to fill in.
func nameFromEmail(email string) string {
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local
}
