package store

import (
	"context"
	"errors"
	"fmt"

	"sceneit-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CollectionStore persists user-owned collections and their entries. It has
// no HTTP surface yet; collections disappear with their owner by cascade.
type CollectionStore interface {
	CreateCollection(ctx context.Context, collection *models.Collection) error
	GetCollectionsByUser(ctx context.Context, userID int64) ([]*models.Collection, error)
	GetCollectionBySlug(ctx context.Context, userID int64, slug string) (*models.Collection, error)
	// AddEntry links a media item to a collection; both must belong to userID.
	AddEntry(ctx context.Context, userID, collectionID, mediaID int64) error
	RemoveEntry(ctx context.Context, userID, collectionID, mediaID int64) error
	DeleteCollection(ctx context.Context, userID, id int64) error
}

// PostgresCollectionStore implements CollectionStore with PostgreSQL.
type PostgresCollectionStore struct {
	db dbtx
}

func NewPostgresCollectionStore(db *pgxpool.Pool) *PostgresCollectionStore {
	return &PostgresCollectionStore{db: db}
}

const collectionSelect = `
    SELECT c.id, c.user_id, c.name, c.slug, c.created_at,
           COALESCE(array_agg(mc.media_id ORDER BY mc.media_id) FILTER (WHERE mc.media_id IS NOT NULL), '{}')
    FROM collections c
    LEFT JOIN media_collections mc ON mc.collection_id = c.id
`

func scanCollection(row pgx.Row) (*models.Collection, error) {
	c := &models.Collection{}
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Slug, &c.CreatedAt, &c.EntryIDs)
	return c, err
}

func (s *PostgresCollectionStore) CreateCollection(ctx context.Context, collection *models.Collection) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}

	query := `
        INSERT INTO collections (user_id, name, slug)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err := s.db.QueryRow(ctx, query, collection.UserID, collection.Name, collection.Slug).
		Scan(&collection.ID, &collection.CreatedAt)
	if err != nil {
		return translatePgError("failed to create collection", err)
	}
	if collection.EntryIDs == nil {
		collection.EntryIDs = []int64{}
	}
	return nil
}

func (s *PostgresCollectionStore) GetCollectionsByUser(ctx context.Context, userID int64) ([]*models.Collection, error) {
	rows, err := s.db.Query(ctx, collectionSelect+`WHERE c.user_id = $1 GROUP BY c.id ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections for user %d: %w", userID, err)
	}
	defer rows.Close()

	collections := make([]*models.Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection rows: %w", err)
	}
	return collections, nil
}

func (s *PostgresCollectionStore) GetCollectionBySlug(ctx context.Context, userID int64, slug string) (*models.Collection, error) {
	c, err := scanCollection(s.db.QueryRow(ctx,
		collectionSelect+`WHERE c.user_id = $1 AND c.slug = $2 GROUP BY c.id`, userID, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to get collection %q: %w", slug, err)
	}
	return c, nil
}

func (s *PostgresCollectionStore) AddEntry(ctx context.Context, userID, collectionID, mediaID int64) error {
	// The SELECT yields no row unless both sides belong to userID.
	query := `
        INSERT INTO media_collections (media_id, collection_id)
        SELECT m.id, c.id
        FROM medias m, collections c
        WHERE m.id = $1 AND m.user_id = $3 AND c.id = $2 AND c.user_id = $3
        ON CONFLICT DO NOTHING
        RETURNING media_id
    `
	var inserted int64
	err := s.db.QueryRow(ctx, query, mediaID, collectionID, userID).Scan(&inserted)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return translatePgError("failed to add collection entry", err)
	}
	return s.explainMissingEntry(ctx, userID, collectionID, mediaID)
}

// explainMissingEntry tells a duplicate entry apart from a foreign or
// missing collection or media item.
func (s *PostgresCollectionStore) explainMissingEntry(ctx context.Context, userID, collectionID, mediaID int64) error {
	var collectionOK, mediaOK bool
	err := s.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1 AND user_id = $3),
               EXISTS (SELECT 1 FROM medias WHERE id = $2 AND user_id = $3)
    `, collectionID, mediaID, userID).Scan(&collectionOK, &mediaOK)
	if err != nil {
		return fmt.Errorf("failed to check collection entry: %w", err)
	}
	switch {
	case !collectionOK:
		return ErrCollectionNotFound
	case !mediaOK:
		return ErrMediaNotFound
	}
	return nil
}

func (s *PostgresCollectionStore) RemoveEntry(ctx context.Context, userID, collectionID, mediaID int64) error {
	query := `
        DELETE FROM media_collections mc
        USING collections c
        WHERE mc.collection_id = c.id AND c.id = $1 AND c.user_id = $2 AND mc.media_id = $3
    `
	tag, err := s.db.Exec(ctx, query, collectionID, userID, mediaID)
	if err != nil {
		return fmt.Errorf("failed to remove collection entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (s *PostgresCollectionStore) DeleteCollection(ctx context.Context, userID, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM collections WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete collection %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}
	return nil
}
