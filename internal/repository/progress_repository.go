package repository

import (
	"context"
	"database/sql"
	"errors"

	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// ProgressRepository handles reading-progress persistence
type ProgressRepository interface {
	Upsert(ctx context.Context, record *models.ProgressRecord) error
	Get(ctx context.Context, userID, mangaID string) (*models.ProgressRecord, error)
	ListByUser(ctx context.Context, userID string) ([]models.ProgressRecord, error)
}

type progressRepository struct {
	db *database.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *database.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// Upsert records the chapter position. Re-submitting the same chapter
// still refreshes last_read_at.
func (r *progressRepository) Upsert(ctx context.Context, record *models.ProgressRecord) error {
	query := `
		INSERT INTO progress (user_id, manga_id, current_chapter, last_read_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, manga_id)
		DO UPDATE SET current_chapter = EXCLUDED.current_chapter, last_read_at = EXCLUDED.last_read_at
	`
	_, err := r.db.ExecContext(ctx, query,
		record.UserID, record.MangaID, record.CurrentChapter, record.LastReadAt)
	if err != nil {
		return mapDBError(err, "upsert_progress")
	}
	return nil
}

func (r *progressRepository) Get(ctx context.Context, userID, mangaID string) (*models.ProgressRecord, error) {
	record := &models.ProgressRecord{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, manga_id, current_chapter, last_read_at
		FROM progress WHERE user_id = $1 AND manga_id = $2
	`, userID, mangaID).Scan(&record.UserID, &record.MangaID, &record.CurrentChapter, &record.LastReadAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("no progress recorded", models.ErrNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_progress")
	}
	return record, nil
}

func (r *progressRepository) ListByUser(ctx context.Context, userID string) ([]models.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, manga_id, current_chapter, last_read_at
		FROM progress WHERE user_id = $1
		ORDER BY last_read_at DESC
	`, userID)
	if err != nil {
		return nil, mapDBError(err, "list_progress")
	}
	defer rows.Close()

	records := []models.ProgressRecord{}
	for rows.Next() {
		var record models.ProgressRecord
		if err := rows.Scan(&record.UserID, &record.MangaID, &record.CurrentChapter, &record.LastReadAt); err != nil {
			return nil, mapDBError(err, "scan_progress")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
