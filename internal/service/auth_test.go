package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/auth"
	"github.com/martinbavio/photalabs/internal/repository"
)

type authFixture struct {
	svc     *AuthService
	users   *mockUserRepo
	tokens  *mockLoginTokenRepo
	credits *mockCreditRepo
	mail    *mockMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	jwt, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	f := &authFixture{
		users:   newMockUserRepo(),
		tokens:  newMockLoginTokenRepo(),
		credits: newMockCreditRepo(),
		mail:    &mockMailer{},
	}
	f.svc = NewAuthService(f.users, f.tokens, f.credits, f.mail, jwt, "https://photalabs.test", testLogger())
	return f
}

// linkParams extracts the token record ID and raw token from the emailed
// sign-in link.
func linkParams(t *testing.T, link string) (string, string) {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parsing magic link %q: %v", link, err)
	}
	return u.Query().Get("id"), u.Query().Get("token")
}

func TestRequestMagicLink(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.RequestMagicLink(context.Background(), "Sarah@Example.COM"); err != nil {
		t.Fatalf("RequestMagicLink() error = %v", err)
	}

	// Address is normalized to lowercase before anything is stored or sent.
	if f.mail.sentTo != "sarah@example.com" {
		t.Errorf("sent to %q, want normalized address", f.mail.sentTo)
	}
	if !strings.HasPrefix(f.mail.sentLink, "https://photalabs.test/auth/verify?") {
		t.Errorf("link = %q, want verify URL on the app base", f.mail.sentLink)
	}

	tokenID, rawToken := linkParams(t, f.mail.sentLink)
	if tokenID == "" || rawToken == "" {
		t.Fatalf("link %q missing tokenId or token", f.mail.sentLink)
	}

	// Only the bcrypt hash is stored; the raw token lives in the URL alone.
	stored, err := f.tokens.GetByID(context.Background(), tokenID)
	if err != nil {
		t.Fatalf("stored token not found: %v", err)
	}
	if stored.TokenHash == rawToken {
		t.Error("raw token was stored verbatim")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.TokenHash), []byte(rawToken)) != nil {
		t.Error("stored hash does not match the raw token from the link")
	}
	if !stored.ExpiresAt.After(time.Now()) {
		t.Error("stored token is already expired")
	}
}

func TestRequestMagicLink_InvalidEmail(t *testing.T) {
	f := newAuthFixture(t)

	for _, email := range []string{"", "   ", "not-an-email"} {
		err := f.svc.RequestMagicLink(context.Background(), email)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("RequestMagicLink(%q) error = %v, want validation error", email, err)
		}
	}
}

func TestVerifyMagicLink_RoundTrip(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.RequestMagicLink(context.Background(), "sarah@example.com"); err != nil {
		t.Fatalf("RequestMagicLink() error = %v", err)
	}
	tokenID, rawToken := linkParams(t, f.mail.sentLink)

	session, user, err := f.svc.VerifyMagicLink(context.Background(), tokenID, rawToken)
	if err != nil {
		t.Fatalf("VerifyMagicLink() error = %v", err)
	}
	if session == "" {
		t.Error("VerifyMagicLink() returned empty session token")
	}
	if user.Email != "sarah@example.com" {
		t.Errorf("user.Email = %q", user.Email)
	}
	if user.Name != "sarah" {
		t.Errorf("user.Name = %q, want local part of the address", user.Name)
	}
	if user.ID == "" {
		t.Error("user was not assigned an ID")
	}

	// A magic link is single-use.
	_, _, err = f.svc.VerifyMagicLink(context.Background(), tokenID, rawToken)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("second redemption error = %v, want unauthenticated", err)
	}
}

func TestVerifyMagicLink_ReturningUserKeepsID(t *testing.T) {
	f := newAuthFixture(t)

	signIn := func() string {
		if err := f.svc.RequestMagicLink(context.Background(), "sarah@example.com"); err != nil {
			t.Fatalf("RequestMagicLink() error = %v", err)
		}
		tokenID, rawToken := linkParams(t, f.mail.sentLink)
		_, user, err := f.svc.VerifyMagicLink(context.Background(), tokenID, rawToken)
		if err != nil {
			t.Fatalf("VerifyMagicLink() error = %v", err)
		}
		return user.ID
	}

	first := signIn()
	second := signIn()
	if first != second {
		t.Errorf("returning user got a new ID: %q then %q", first, second)
	}
}

func TestVerifyMagicLink_WrongToken(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.RequestMagicLink(context.Background(), "sarah@example.com"); err != nil {
		t.Fatalf("RequestMagicLink() error = %v", err)
	}
	tokenID, _ := linkParams(t, f.mail.sentLink)

	_, _, err := f.svc.VerifyMagicLink(context.Background(), tokenID, "wrong-token")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("error = %v, want unauthenticated", err)
	}

	// The failed attempt must not consume the token.
	stored, _ := f.tokens.GetByID(context.Background(), tokenID)
	if stored.ConsumedAt != nil {
		t.Error("failed redemption consumed the token")
	}
}

func TestVerifyMagicLink_Expired(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.RequestMagicLink(context.Background(), "sarah@example.com"); err != nil {
		t.Fatalf("RequestMagicLink() error = %v", err)
	}
	tokenID, rawToken := linkParams(t, f.mail.sentLink)

	// Age the token past its window.
	f.tokens.tokens[tokenID].ExpiresAt = time.Now().Add(-time.Minute)

	_, _, err := f.svc.VerifyMagicLink(context.Background(), tokenID, rawToken)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("error = %v, want unauthenticated", err)
	}
}

func TestVerifyMagicLink_UnknownTokenID(t *testing.T) {
	f := newAuthFixture(t)

	_, _, err := f.svc.VerifyMagicLink(context.Background(), "missing", "whatever")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("error = %v, want unauthenticated", err)
	}
}

func TestViewer(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.RequestMagicLink(context.Background(), "sarah@example.com"); err != nil {
		t.Fatalf("RequestMagicLink() error = %v", err)
	}
	tokenID, rawToken := linkParams(t, f.mail.sentLink)
	_, user, err := f.svc.VerifyMagicLink(context.Background(), tokenID, rawToken)
	if err != nil {
		t.Fatalf("VerifyMagicLink() error = %v", err)
	}

	viewer, err := f.svc.Viewer(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Viewer() error = %v", err)
	}
	if viewer.Email != "sarah@example.com" {
		t.Errorf("viewer.Email = %q", viewer.Email)
	}
	// A fresh user has the full starting allowance.
	if viewer.Credits != repository.DefaultCredits {
		t.Errorf("viewer.Credits = %d, want %d", viewer.Credits, repository.DefaultCredits)
	}
}

func TestViewer_Anonymous(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Viewer(context.Background(), "")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Viewer(\"\") error = %v, want unauthenticated", err)
	}
}
