package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/martinbavio/photalabs/internal/model"
)

// newTestDB returns a DB backed by an in-memory SQLite database that is
// torn down with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// An in-memory SQLite database lives inside a single connection, so the
// pool must stay pinned to one conn — otherwise concurrent queries land on
// fresh connections holding an empty schema.
func TestNew_InMemorySurvivesConcurrentQueries(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "pooled@example.com")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.Users().GetByID(context.Background(), user.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("GetByID() error = %v", err)
	}
}

// createTestUser inserts a user via the magic-link upsert path and fails
// the test on error.
func createTestUser(t *testing.T, u *UserDB, email string) *model.User {
	t.Helper()

	now := time.Now()
	user := &model.User{
		Email:           email,
		Name:            "Test User",
		EmailVerifiedAt: &now,
	}
	if err := u.Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}
