package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestTokenService creates a TokenService with a fixed, known secret so
// tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	userID := "user-abc-123"

	token, err := ts.Generate(userID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != userID {
		t.Errorf("Validate() userID = %q, want %q", got, userID)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if err == nil {
		t.Fatal("Validate() should return an error for an expired token")
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Validate(tampered)
	if err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	token, _ := ts1.Generate("user-123")

	_, err := ts2.Validate(token)
	if err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_GarbageString(t *testing.T) {
	ts := newTestTokenService(t)

	_, err := ts.Validate("not.a.jwt.token")
	if err == nil {
		t.Fatal("Validate() should return an error for a garbage string")
	}
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)

	var gotUserID string
	handler := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No cookie → 401, handler never runs.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", rec.Code)
	}

	// Valid cookie → handler sees the userID.
	token, _ := ts.Generate("user-42")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid cookie: status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-42" {
		t.Errorf("handler saw userID %q, want %q", gotUserID, "user-42")
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	ts := newTestTokenService(t)

	var ok bool
	handler := OptionalAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ok {
		t.Error("anonymous request should have no userID in context")
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("UserIDFromContext() on empty context should report false")
	}
}
