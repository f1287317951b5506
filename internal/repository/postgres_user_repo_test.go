package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/socialhub/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func assertExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestPostgresUserRepo_FindByID_Found(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, email, name, image, created_at, updated_at FROM users WHERE id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "image", "created_at", "updated_at"}).
			AddRow("user-1", "alice@example.com", "Alice", "https://example.com/a.png", now, now))

	user, err := NewPostgresUserRepo(db).FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Name != "Alice" || user.Image != "https://example.com/a.png" {
		t.Errorf("user = %+v", user)
	}
	assertExpectations(t, mock)
}

func TestPostgresUserRepo_FindByID_NotFound_ReturnsNil(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	user, err := NewPostgresUserRepo(db).FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
	assertExpectations(t, mock)
}

func TestPostgresUserRepo_CreateWithIdentity_CommitsBothInserts(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", "alice@example.com", "Alice", "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO identities").
		WithArgs("identity-1", "user-1", "google", "google-123", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &model.User{ID: "user-1", Email: "alice@example.com", Name: "Alice", CreatedAt: now, UpdatedAt: now}
	identity := &model.Identity{ID: "identity-1", UserID: "user-1", Provider: "google", ProviderUserID: "google-123", CreatedAt: now}

	if err := NewPostgresUserRepo(db).CreateWithIdentity(context.Background(), user, identity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestPostgresUserRepo_CreateWithIdentity_RollsBackOnIdentityFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO identities").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := NewPostgresUserRepo(db).CreateWithIdentity(context.Background(),
		&model.User{ID: "user-1"}, &model.Identity{ID: "identity-1", UserID: "user-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	assertExpectations(t, mock)
}

func TestPostgresUserRepo_UpdateProfile(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("UPDATE users SET name").
		WithArgs("user-1", "Alice B", "https://example.com/b.png").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresUserRepo(db).UpdateProfile(context.Background(), "user-1", "Alice B", "https://example.com/b.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestPostgresIdentityRepo_FindByProviderAndProviderUserID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("FROM identities").
		WithArgs("google", "google-123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider", "provider_user_id", "created_at"}).
			AddRow("identity-1", "user-1", "google", "google-123", now))

	identity, err := NewPostgresIdentityRepo(db).FindByProviderAndProviderUserID(context.Background(), "google", "google-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity == nil || identity.UserID != "user-1" {
		t.Errorf("identity = %+v, want user-1", identity)
	}
	assertExpectations(t, mock)
}

func TestPostgresIdentityRepo_NotFound_ReturnsNil(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("FROM identities").WillReturnError(sql.ErrNoRows)

	identity, err := NewPostgresIdentityRepo(db).FindByProviderAndProviderUserID(context.Background(), "google", "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity != nil {
		t.Errorf("expected nil, got %+v", identity)
	}
	assertExpectations(t, mock)
}
