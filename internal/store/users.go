package store

import (
	"context"
	"errors"
	"fmt"

	"sceneit-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore defines the interface for user data operations.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// CreateUser inserts user and fills in its ID and timestamps.
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUser replaces every mutable column and refreshes LastModifiedAt.
	UpdateUser(ctx context.Context, user *models.User) error
	// DeleteUser removes the user; media and collections follow by cascade.
	DeleteUser(ctx context.Context, id int64) error
	// WithTx runs fn inside one transaction, rolled back if fn fails.
	WithTx(ctx context.Context, fn func(UserStore) error) error
}

// PostgresUserStore implements the UserStore interface using PostgreSQL.
type PostgresUserStore struct {
	db dbtx
}

// NewPostgresUserStore creates a new PostgresUserStore.
func NewPostgresUserStore(db *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{
		db: db,
	}
}

const userColumns = `id, username, password, email, role, created_at, last_modified_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.HashedPassword,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
		&user.LastModifiedAt,
	)
	return user, err
}

// WithTx runs fn with a store bound to a single transaction.
func (s *PostgresUserStore) WithTx(ctx context.Context, fn func(UserStore) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PostgresUserStore{db: tx})
	})
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresUserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (s *PostgresUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// CreateUser inserts a new user into the database.
// user.HashedPassword must already be set; Role defaults to USER.
func (s *PostgresUserStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
        INSERT INTO users (username, password, email, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, last_modified_at
    `
	err := s.db.QueryRow(ctx, query,
		user.Username,
		user.HashedPassword,
		user.Email,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.LastModifiedAt)
	if err != nil {
		return translatePgError("failed to create user", err)
	}
	return nil
}

// UpdateUser writes username, password, email and role of an existing user.
func (s *PostgresUserStore) UpdateUser(ctx context.Context, user *models.User) error {
	if err := ValidateUser(user); err != nil {
		return err
	}

	query := `
        UPDATE users
        SET username = $2, password = $3, email = $4, role = $5, last_modified_at = now()
        WHERE id = $1
        RETURNING last_modified_at
    `
	err := s.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.HashedPassword,
		user.Email,
		user.Role,
	).Scan(&user.LastModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return translatePgError("failed to update user", err)
	}
	return nil
}

// DeleteUser removes a user row. Owned media, completions and collections are
// removed by ON DELETE CASCADE foreign keys.
func (s *PostgresUserStore) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
