package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrEmailExists        = fmt.Errorf("email already exists")
	ErrUsernameExists     = fmt.Errorf("username already exists")
	ErrInvalidEmail       = fmt.Errorf("email must be a well-formed email address")
	ErrInvalidUsername    = fmt.Errorf("username must be 1-16 non-blank characters")
	ErrMediaNotFound      = fmt.Errorf("media not found")
	ErrInvalidMedia       = fmt.Errorf("media is missing a title or has an unknown type")
	ErrSlugExists         = fmt.Errorf("collection slug already exists")
	ErrCollectionNotFound = fmt.Errorf("collection not found")
	ErrInvalidCollection  = fmt.Errorf("collection name and slug must not be blank")
)

// PostgreSQL SQLSTATE codes the stores translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// constraintErrors maps named schema constraints to domain errors so a
// check-then-write race still surfaces the same error as the pre-check.
var constraintErrors = map[string]error{
	"users_username_key":                   ErrUsernameExists,
	"users_email_key":                      ErrEmailExists,
	"users_email_check":                    ErrInvalidEmail,
	"users_username_check":                 ErrInvalidUsername,
	"medias_user_id_fkey":                  ErrUserNotFound,
	"medias_title_check":                   ErrInvalidMedia,
	"medias_type_check":                    ErrInvalidMedia,
	"medias_source_type_check":             ErrInvalidMedia,
	"collections_slug_key":                 ErrSlugExists,
	"collections_user_id_fkey":             ErrUserNotFound,
	"collections_name_check":               ErrInvalidCollection,
	"media_collections_media_id_fkey":      ErrMediaNotFound,
	"media_collections_collection_id_fkey": ErrCollectionNotFound,
	"media_completions_media_id_fkey":      ErrMediaNotFound,
}

// translatePgError converts constraint violations into sentinel errors and
// wraps everything else with op.
func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
			if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
				return mapped
			}
			return fmt.Errorf("%s: constraint %s violated: %w", op, pgErr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
