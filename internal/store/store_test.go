package store

import (
	"context"
	"os"
	"testing"

	"sceneit-backend/internal/database"
	"sceneit-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB connects to TEST_DATABASE_URL, applies the migrations and
// empties every table. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping PostgreSQL integration test")
	}

	if err := database.RunMigrations(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, url, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE users, medias, media_completions, collections, media_collections RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func createTestUser(t *testing.T, users *PostgresUserStore, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, HashedPassword: "$2a$04$hash"}
	if err := users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func strPtr(s string) *string { return &s }
