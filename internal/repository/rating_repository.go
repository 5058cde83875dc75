package repository

import (
	"context"
	"database/sql"
	"errors"

	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// RatingRepository handles rating persistence
type RatingRepository interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	Delete(ctx context.Context, userID, mangaID string) error
	Get(ctx context.Context, userID, mangaID string) (*models.Rating, error)
	Stats(ctx context.Context, mangaID string) (*models.RatingStats, error)
}

type ratingRepository struct {
	db *database.DB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *database.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	query := `
		INSERT INTO ratings (user_id, manga_id, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, manga_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rating.UserID, rating.MangaID, rating.Value, rating.UpdatedAt)
	if err != nil {
		return mapDBError(err, "upsert_rating")
	}
	return nil
}

func (r *ratingRepository) Delete(ctx context.Context, userID, mangaID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM ratings WHERE user_id = $1 AND manga_id = $2`, userID, mangaID)
	if err != nil {
		return mapDBError(err, "delete_rating")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("no rating to remove", models.ErrNotFound)
	}
	return nil
}

func (r *ratingRepository) Get(ctx context.Context, userID, mangaID string) (*models.Rating, error) {
	rating := &models.Rating{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, manga_id, value, updated_at
		FROM ratings WHERE user_id = $1 AND manga_id = $2
	`, userID, mangaID).Scan(&rating.UserID, &rating.MangaID, &rating.Value, &rating.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("no rating found", models.ErrNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_rating")
	}
	return rating, nil
}

// Stats aggregates the full distribution in one pass over the rows.
func (r *ratingRepository) Stats(ctx context.Context, mangaID string) (*models.RatingStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT value, COUNT(*) FROM ratings WHERE manga_id = $1 GROUP BY value`, mangaID)
	if err != nil {
		return nil, mapDBError(err, "rating_stats")
	}
	defer rows.Close()

	stats := &models.RatingStats{RatingDistribution: make(map[int]int)}
	sum := 0
	for rows.Next() {
		var value, count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, mapDBError(err, "scan_rating_stats")
		}
		stats.RatingDistribution[value] = count
		stats.TotalRatings += count
		sum += value * count
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err, "rating_stats")
	}
	if stats.TotalRatings > 0 {
		stats.AverageRating = float64(sum) / float64(stats.TotalRatings)
	}
	return stats, nil
}
