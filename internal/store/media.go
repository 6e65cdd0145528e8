package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sceneit-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MediaStore defines persistence operations for media items. Every lookup and
// write is filtered by the owning user's id.
type MediaStore interface {
	GetMediaByUser(ctx context.Context, userID int64) ([]*models.Media, error)
	GetMediaByUserAndID(ctx context.Context, userID, id int64) (*models.Media, error)
	// CreateMedia inserts media with its completion set and fills in ID.
	CreateMedia(ctx context.Context, media *models.Media) error
	// UpdateMedia replaces every mutable field, including the whole
	// completion set, of a media item owned by media.UserID.
	UpdateMedia(ctx context.Context, media *models.Media) error
	// AddCompletion appends t to the completion set of media item id owned
	// by userID. Adding an instant already in the set changes nothing.
	AddCompletion(ctx context.Context, userID, id int64, t time.Time) error
	DeleteMedia(ctx context.Context, userID, id int64) error
	WithTx(ctx context.Context, fn func(MediaStore) error) error
}

// PostgresMediaStore implements MediaStore with PostgreSQL.
type PostgresMediaStore struct {
	db dbtx
}

func NewPostgresMediaStore(db *pgxpool.Pool) *PostgresMediaStore {
	return &PostgresMediaStore{
		db: db,
	}
}

// The completion set is folded into one row per media item.
const mediaSelect = `
    SELECT m.id, m.user_id, m.title, m.type, m.image_url, m.source_type, m.source_id, m.created_at,
           COALESCE(
               array_agg(c.completed_at ORDER BY c.completed_at) FILTER (WHERE c.completed_at IS NOT NULL),
               '{}'
           ) AS completions
    FROM medias m
    LEFT JOIN media_completions c ON c.media_id = m.id
`

func scanMedia(row pgx.Row) (*models.Media, error) {
	media := &models.Media{}
	var completions []time.Time
	err := row.Scan(
		&media.ID,
		&media.UserID,
		&media.Title,
		&media.Type,
		&media.ImageURL,
		&media.SourceType,
		&media.SourceID,
		&media.CreatedAt,
		&completions,
	)
	if err != nil {
		return nil, err
	}
	media.CompletionTimestamps = models.NewCompletionSet(completions...)
	return media, nil
}

func (s *PostgresMediaStore) WithTx(ctx context.Context, fn func(MediaStore) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PostgresMediaStore{db: tx})
	})
}

func (s *PostgresMediaStore) GetMediaByUser(ctx context.Context, userID int64) ([]*models.Media, error) {
	query := mediaSelect + `WHERE m.user_id = $1 GROUP BY m.id ORDER BY m.id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media for user %d: %w", userID, err)
	}
	defer rows.Close()

	medias := make([]*models.Media, 0)
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media for user %d: %w", userID, err)
		}
		medias = append(medias, media)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media rows for user %d: %w", userID, err)
	}
	return medias, nil
}

func (s *PostgresMediaStore) GetMediaByUserAndID(ctx context.Context, userID, id int64) (*models.Media, error) {
	query := mediaSelect + `WHERE m.user_id = $1 AND m.id = $2 GROUP BY m.id`

	media, err := scanMedia(s.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to get media %d: %w", id, err)
	}
	return media, nil
}

func (s *PostgresMediaStore) CreateMedia(ctx context.Context, media *models.Media) error {
	if err := ValidateMedia(media); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		query := `
            INSERT INTO medias (user_id, title, type, image_url, source_type, source_id)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, created_at
        `
		err := tx.QueryRow(ctx, query,
			media.UserID,
			media.Title,
			media.Type,
			media.ImageURL,
			media.SourceType,
			media.SourceID,
		).Scan(&media.ID, &media.CreatedAt)
		if err != nil {
			return translatePgError("failed to create media", err)
		}
		return insertCompletions(ctx, tx, media.ID, media.CompletionTimestamps)
	})
}

func (s *PostgresMediaStore) UpdateMedia(ctx context.Context, media *models.Media) error {
	if err := ValidateMedia(media); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		query := `
            UPDATE medias
            SET title = $3, type = $4, image_url = $5, source_type = $6, source_id = $7
            WHERE id = $1 AND user_id = $2
        `
		tag, err := tx.Exec(ctx, query,
			media.ID,
			media.UserID,
			media.Title,
			media.Type,
			media.ImageURL,
			media.SourceType,
			media.SourceID,
		)
		if err != nil {
			return translatePgError("failed to update media", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMediaNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM media_completions WHERE media_id = $1`, media.ID); err != nil {
			return fmt.Errorf("failed to clear completions for media %d: %w", media.ID, err)
		}
		return insertCompletions(ctx, tx, media.ID, media.CompletionTimestamps)
	})
}

// AddCompletion inserts one completion row and leaves the rest of the set
// untouched.
func (s *PostgresMediaStore) AddCompletion(ctx context.Context, userID, id int64, t time.Time) error {
	query := `
        WITH owned AS (
            SELECT id FROM medias WHERE id = $1 AND user_id = $2
        ), added AS (
            INSERT INTO media_completions (media_id, completed_at)
            SELECT id, $3 FROM owned
            ON CONFLICT DO NOTHING
        )
        SELECT EXISTS (SELECT 1 FROM owned)
    `
	var found bool
	if err := s.db.QueryRow(ctx, query, id, userID, models.NormalizeInstant(t)).Scan(&found); err != nil {
		return translatePgError(fmt.Sprintf("failed to add completion to media %d", id), err)
	}
	if !found {
		return ErrMediaNotFound
	}
	return nil
}

func (s *PostgresMediaStore) DeleteMedia(ctx context.Context, userID, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM medias WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete media %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func insertCompletions(ctx context.Context, tx pgx.Tx, mediaID int64, completions models.CompletionSet) error {
	if len(completions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ts := range completions {
		batch.Queue(`
            INSERT INTO media_completions (media_id, completed_at)
            VALUES ($1, $2)
            ON CONFLICT DO NOTHING
        `, mediaID, ts)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return translatePgError(fmt.Sprintf("failed to store completions for media %d", mediaID), err)
	}
	return nil
}
