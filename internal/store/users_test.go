package store

import (
	"context"
	"errors"
	"testing"

	"sceneit-backend/internal/models"
)

func TestPostgresUserStore_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	users := NewPostgresUserStore(pool)
	ctx := context.Background()

	u := &models.User{Username: "alice", HashedPassword: "$2a$04$hash", Email: strPtr("alice@example.com")}
	if err := users.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 || u.Role != models.RoleUser || u.CreatedAt.IsZero() {
		t.Fatalf("CreateUser did not fill generated fields: %+v", u)
	}

	got, err := users.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if !got.Equal(u) || got.EmailValue() != "alice@example.com" || got.HashedPassword != u.HashedPassword {
		t.Errorf("got %+v, want %+v", got, u)
	}

	if _, err := users.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user: %v", err)
	}

	exists, err := users.UsernameExists(ctx, "alice")
	if err != nil || !exists {
		t.Errorf("UsernameExists(alice) = %v, %v", exists, err)
	}
	exists, err = users.EmailExists(ctx, "nobody@example.com")
	if err != nil || exists {
		t.Errorf("EmailExists(nobody) = %v, %v", exists, err)
	}
}

func TestPostgresUserStore_UniqueConstraintsTranslate(t *testing.T) {
	pool := setupTestDB(t)
	users := NewPostgresUserStore(pool)
	ctx := context.Background()

	createTestUser(t, users, "alice")
	err := users.CreateUser(ctx, &models.User{Username: "alice", HashedPassword: "h"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("duplicate username: %v", err)
	}

	if err := users.CreateUser(ctx, &models.User{Username: "bob", HashedPassword: "h", Email: strPtr("x@example.com")}); err != nil {
		t.Fatal(err)
	}
	err = users.CreateUser(ctx, &models.User{Username: "carol", HashedPassword: "h", Email: strPtr("x@example.com")})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate email: %v", err)
	}

	// Several users without an email may coexist.
	createTestUser(t, users, "dave")
	createTestUser(t, users, "erin")
}

func TestPostgresUserStore_EmailCheckConstraint(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	// Bypass ValidateUser to prove the schema rejects it on its own.
	_, err := pool.Exec(ctx, `INSERT INTO users (username, password, email) VALUES ('mallory', 'h', 'not-an-email')`)
	if !errors.Is(translatePgError("insert", err), ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}

	users := NewPostgresUserStore(pool)
	err = users.CreateUser(ctx, &models.User{Username: "mallory", HashedPassword: "h", Email: strPtr("still not")})
	if !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("store boundary: %v", err)
	}
}

func TestPostgresUserStore_UpdateInTransaction(t *testing.T) {
	pool := setupTestDB(t)
	users := NewPostgresUserStore(pool)
	ctx := context.Background()
	alice := createTestUser(t, users, "alice")
	createTestUser(t, users, "bob")

	err := users.WithTx(ctx, func(tx UserStore) error {
		u, err := tx.GetUserByUsername(ctx, "alice")
		if err != nil {
			return err
		}
		u.Email = strPtr("alice@example.com")
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		u.Username = "bob"
		return tx.UpdateUser(ctx, u)
	})
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}

	got, err := users.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != nil {
		t.Errorf("email change was not rolled back: %q", *got.Email)
	}

	alice.Username = "alicia"
	if err := users.UpdateUser(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if !alice.LastModifiedAt.After(alice.CreatedAt) && !alice.LastModifiedAt.Equal(alice.CreatedAt) {
		t.Errorf("last modified went backwards")
	}
}

func TestPostgresUserStore_DeleteCascades(t *testing.T) {
	pool := setupTestDB(t)
	users := NewPostgresUserStore(pool)
	medias := NewPostgresMediaStore(pool)
	ctx := context.Background()
	alice := createTestUser(t, users, "alice")

	m := &models.Media{UserID: alice.ID, Title: "Arrival", Type: models.MediaTypeMovie,
		CompletionTimestamps: models.NewCompletionSet(mustInstant(t, "2024-01-01T00:00:00Z"))}
	if err := medias.CreateMedia(ctx, m); err != nil {
		t.Fatal(err)
	}

	if err := users.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := users.DeleteUser(ctx, alice.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second delete: %v", err)
	}

	var remaining int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM media_completions`).Scan(&remaining); err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("%d completions survived user delete", remaining)
	}
}
