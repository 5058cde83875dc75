package repository

import (
	"context"
	"database/sql"
	"errors"

	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// LibraryRepository handles per-user library persistence
type LibraryRepository interface {
	Upsert(ctx context.Context, entry *models.LibraryEntry) error
	Remove(ctx context.Context, userID, mangaID string) error
	Get(ctx context.Context, userID, mangaID string) (*models.LibraryEntry, error)
	List(ctx context.Context, userID string) ([]models.LibraryItem, error)
	ListFiltered(ctx context.Context, userID string, status models.LibraryStatus) ([]models.LibraryItem, error)
	Stats(ctx context.Context, userID string) (*models.LibraryStats, error)
}

type libraryRepository struct {
	db *database.DB
}

// NewLibraryRepository creates a new library repository
func NewLibraryRepository(db *database.DB) LibraryRepository {
	return &libraryRepository{db: db}
}

// Upsert inserts the entry, or refreshes status and last_updated when the
// manga is already in the library. added_at survives re-adds.
func (r *libraryRepository) Upsert(ctx context.Context, entry *models.LibraryEntry) error {
	query := `
		INSERT INTO library (user_id, manga_id, status, added_at, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, manga_id)
		DO UPDATE SET status = EXCLUDED.status, last_updated = EXCLUDED.last_updated
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.UserID, entry.MangaID, entry.Status, entry.AddedAt, entry.LastUpdated)
	if err != nil {
		return mapDBError(err, "upsert_library")
	}
	return nil
}

func (r *libraryRepository) Remove(ctx context.Context, userID, mangaID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM library WHERE user_id = $1 AND manga_id = $2`, userID, mangaID)
	if err != nil {
		return mapDBError(err, "remove_library")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("manga not in library", models.ErrNotFound)
	}
	return nil
}

func (r *libraryRepository) Get(ctx context.Context, userID, mangaID string) (*models.LibraryEntry, error) {
	entry := &models.LibraryEntry{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, manga_id, status, added_at, last_updated
		FROM library WHERE user_id = $1 AND manga_id = $2
	`, userID, mangaID).Scan(&entry.UserID, &entry.MangaID, &entry.Status, &entry.AddedAt, &entry.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("manga not in library", models.ErrNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_library_entry")
	}
	return entry, nil
}

func (r *libraryRepository) List(ctx context.Context, userID string) ([]models.LibraryItem, error) {
	return r.list(ctx, userID, "")
}

func (r *libraryRepository) ListFiltered(ctx context.Context, userID string, status models.LibraryStatus) ([]models.LibraryItem, error) {
	return r.list(ctx, userID, status)
}

func (r *libraryRepository) list(ctx context.Context, userID string, status models.LibraryStatus) ([]models.LibraryItem, error) {
	query := `
		SELECT l.user_id, l.manga_id, l.status, l.added_at, l.last_updated,
		       m.id, m.title, m.author, m.status, m.total_chapters, m.genres,
		       m.description, m.cover_url, m.publication_year, m.created_at,
		       COALESCE((SELECT AVG(value) FROM ratings r WHERE r.manga_id = m.id), 0),
		       COALESCE((SELECT COUNT(*) FROM ratings r WHERE r.manga_id = m.id), 0)
		FROM library l
		JOIN manga m ON m.id = l.manga_id
		WHERE l.user_id = $1
	`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND l.status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY l.last_updated DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err, "list_library")
	}
	defer rows.Close()

	items := []models.LibraryItem{}
	for rows.Next() {
		var item models.LibraryItem
		m := &models.Manga{}
		var genresJSON string
		err := rows.Scan(
			&item.UserID, &item.MangaID, &item.Status, &item.AddedAt, &item.LastUpdated,
			&m.ID, &m.Title, &m.Author, &m.Status, &m.TotalChapters, &genresJSON,
			&m.Description, &m.CoverURL, &m.PublicationYear, &m.CreatedAt,
			&m.Rating, &m.RatingCount)
		if err != nil {
			return nil, mapDBError(err, "scan_library_item")
		}
		decodeJSONList(genresJSON, &m.Genres)
		item.Manga = m
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *libraryRepository) Stats(ctx context.Context, userID string) (*models.LibraryStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM library WHERE user_id = $1 GROUP BY status`, userID)
	if err != nil {
		return nil, mapDBError(err, "library_stats")
	}
	defer rows.Close()

	stats := &models.LibraryStats{ByStatus: make(map[string]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, mapDBError(err, "scan_library_stats")
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}
