package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/collection"
	"studysync/internal/domain/dataset"
)

type CollectionRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewCollectionRepository(pool *pgxpool.Pool, log *slog.Logger) *CollectionRepository {
	return &CollectionRepository{
		pool: pool,
		log:  log.With("component", "collection_repository"),
	}
}

func (r *CollectionRepository) ListRows(ctx context.Context, userID int, c dataset.Collection) ([]collection.Row, error) {
	const query = `
		SELECT id, payload, updated_at
		FROM dataset_rows
		WHERE user_id = $1 AND collection = $2
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, userID, c.String())
	if err != nil {
		r.log.Error("failed to list rows", "user_id", userID, "collection", c, "error", err)
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	result := []collection.Row{}
	for rows.Next() {
		var row collection.Row
		if err := rows.Scan(&row.ID, &row.Payload, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// При равном updated_at остается сохраненная строка, как и в слиянии на клиенте.
const (
	upsertRowQuery = `
		INSERT INTO dataset_rows (user_id, collection, id, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, collection, id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
		WHERE dataset_rows.updated_at < EXCLUDED.updated_at`

	upsertPreferencesQuery = `
		INSERT INTO user_preferences (user_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
		WHERE user_preferences.updated_at < EXCLUDED.updated_at`
)

// UpsertRow перезаписывает строку, только если присланная строго новее.
func (r *CollectionRepository) UpsertRow(ctx context.Context, userID int, c dataset.Collection, row collection.Row) (bool, error) {
	tag, err := r.pool.Exec(ctx, upsertRowQuery, userID, c.String(), row.ID, row.Payload, row.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert row: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CollectionRepository) DeleteRow(ctx context.Context, userID int, c dataset.Collection, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM dataset_rows WHERE user_id = $1 AND collection = $2 AND id = $3`,
		userID, c.String(), id)
	if err != nil {
		return false, fmt.Errorf("delete row: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CollectionRepository) GetPreferences(ctx context.Context, userID int) (*collection.PreferencesRow, error) {
	var prefs collection.PreferencesRow
	err := r.pool.QueryRow(ctx,
		`SELECT payload, updated_at FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&prefs.Payload, &prefs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &prefs, nil
}

func (r *CollectionRepository) UpsertPreferences(ctx context.Context, userID int, prefs collection.PreferencesRow) (bool, error) {
	tag, err := r.pool.Exec(ctx, upsertPreferencesQuery, userID, prefs.Payload, prefs.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert preferences: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CollectionRepository) ListCourses(ctx context.Context, userID int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM user_courses WHERE user_id = $1 ORDER BY lower(name)`, userID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect courses: %w", err)
	}
	return courses, nil
}

// AddCourses добавляет курсы одной транзакцией. Уже известные (без учета регистра) пропускаются.
func (r *CollectionRepository) AddCourses(ctx context.Context, userID int, courses []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, name := range courses {
		batch.Queue(
			`INSERT INTO user_courses (user_id, name, name_key) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, name_key) DO NOTHING`,
			userID, name, strings.ToLower(name))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert courses: %w", err)
	}
	return tx.Commit(ctx)
}
