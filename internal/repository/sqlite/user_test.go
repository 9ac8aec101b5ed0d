package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ofcardoso/medbox/internal/apperror"
	"github.com/ofcardoso/medbox/internal/model"
)

// newTestDB returns a *DB backed by an in-memory database that is discarded
// when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email, name string) *model.User {
	t.Helper()

	user := &model.User{
		Email:      email,
		Name:       name,
		PictureURL: "https://lh3.googleusercontent.com/a/test",
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Email:      "ana@example.com",
		Name:       "Ana",
		PictureURL: "https://example.com/ana.png",
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Create fills in the generated fields on the caller's struct.
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Create() did not set user.UpdatedAt")
	}
}

func TestUserCreate_EmptyEmail(t *testing.T) {
	db := newTestDB(t)

	err := db.Create(context.Background(), &model.User{Name: "No Email"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

// The UNIQUE constraint on email is what enforces one user per email even
// under concurrent creation, so the Conflict mapping must be reliable.
func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	first := createTestUser(t, db, "dup@example.com", "First")

	second := &model.User{Email: "dup@example.com", Name: "Second"}
	err := db.Create(context.Background(), second)
	if err == nil {
		t.Fatal("Create() should have failed for a duplicate email")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}

	// The original row is untouched.
	got, err := db.GetByEmail(context.Background(), "dup@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != first.ID || got.Name != "First" {
		t.Errorf("existing user changed after conflicting Create: got %+v", got)
	}
}

func TestUserCreate_DistinctEmails(t *testing.T) {
	db := newTestDB(t)

	a := createTestUser(t, db, "a@x.com", "A")
	b := createTestUser(t, db, "b@x.com", "B")

	if a.ID == b.ID {
		t.Errorf("distinct emails produced the same user ID %q", a.ID)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "ana@example.com", "Ana")

	got, err := db.GetByEmail(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail() ID = %q, want %q", got.ID, created.ID)
	}
	if got.Name != "Ana" {
		t.Errorf("GetByEmail() Name = %q, want %q", got.Name, "Ana")
	}
}

func TestUserGetByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "ana@example.com", "Ana")

	got, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "ana@example.com" {
		t.Errorf("GetByID() Email = %q, want %q", got.Email, "ana@example.com")
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "cv37rs3pp9olc6atsptg")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

// Migrations run on every startup, so reopening the same database must not
// error. In-memory databases are per-connection, so this exercises the
// CREATE TABLE IF NOT EXISTS path via two fresh opens.
func TestMigrateIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
