package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// MangaRepository handles catalog persistence: manga and their chapters.
type MangaRepository interface {
	Create(ctx context.Context, m *models.Manga) error
	GetByID(ctx context.Context, id string) (*models.Manga, error)
	Update(ctx context.Context, m *models.Manga) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, req *models.MangaSearchRequest) ([]models.Manga, int, error)
	ListGenres(ctx context.Context) ([]string, error)
	Popular(ctx context.Context, limit int) ([]models.Manga, error)
	Stats(ctx context.Context) (*models.CatalogStats, error)

	CreateChapter(ctx context.Context, ch *models.Chapter) error
	ListChapters(ctx context.Context, mangaID string, languages []string, limit, offset int) ([]models.Chapter, int, error)
	GetChapter(ctx context.Context, chapterID, source string) (*models.Chapter, error)
}

type mangaRepository struct {
	db *database.DB
}

// NewMangaRepository creates a new catalog repository
func NewMangaRepository(db *database.DB) MangaRepository {
	return &mangaRepository{db: db}
}

// mangaSelect pulls the derived rating aggregates alongside the row.
const mangaSelect = `
	SELECT m.id, m.title, m.author, m.status, m.total_chapters, m.genres,
	       m.description, m.cover_url, m.publication_year, m.created_at,
	       COALESCE((SELECT AVG(value) FROM ratings r WHERE r.manga_id = m.id), 0),
	       COALESCE((SELECT COUNT(*) FROM ratings r WHERE r.manga_id = m.id), 0)
	FROM manga m
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanManga(row rowScanner) (*models.Manga, error) {
	m := &models.Manga{}
	var genresJSON string
	err := row.Scan(&m.ID, &m.Title, &m.Author, &m.Status, &m.TotalChapters, &genresJSON,
		&m.Description, &m.CoverURL, &m.PublicationYear, &m.CreatedAt,
		&m.Rating, &m.RatingCount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(genresJSON), &m.Genres); err != nil {
		m.Genres = nil
	}
	return m, nil
}

func (r *mangaRepository) Create(ctx context.Context, m *models.Manga) error {
	genres, err := json.Marshal(m.Genres)
	if err != nil {
		return models.NewValidationError("invalid genres")
	}
	query := `
		INSERT INTO manga (id, title, author, status, total_chapters, genres,
		                   description, cover_url, publication_year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Author, m.Status, m.TotalChapters, string(genres),
		m.Description, m.CoverURL, m.PublicationYear, m.CreatedAt)
	if err != nil {
		mapped := mapDBError(err, "create_manga")
		if isConflict(mapped) {
			return models.NewConflictError("manga already exists", err)
		}
		return mapped
	}
	return nil
}

func (r *mangaRepository) GetByID(ctx context.Context, id string) (*models.Manga, error) {
	m, err := scanManga(r.db.QueryRowContext(ctx, mangaSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("manga not found", models.ErrMangaNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_manga_by_id")
	}
	return m, nil
}

func (r *mangaRepository) Update(ctx context.Context, m *models.Manga) error {
	genres, err := json.Marshal(m.Genres)
	if err != nil {
		return models.NewValidationError("invalid genres")
	}
	query := `
		UPDATE manga
		SET title = $2, author = $3, status = $4, total_chapters = $5, genres = $6,
		    description = $7, cover_url = $8, publication_year = $9
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Author, m.Status, m.TotalChapters, string(genres),
		m.Description, m.CoverURL, m.PublicationYear)
	if err != nil {
		return mapDBError(err, "update_manga")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("manga not found", models.ErrMangaNotFound)
	}
	return nil
}

func (r *mangaRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM manga WHERE id = $1`, id)
	if err != nil {
		return mapDBError(err, "delete_manga")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("manga not found", models.ErrMangaNotFound)
	}
	return nil
}

// Search filters by title/author substring, genre membership and status.
// Genres are stored as a JSON array, so membership is a quoted substring
// match; adequate at catalog scale.
func (r *mangaRepository) Search(ctx context.Context, req *models.MangaSearchRequest) ([]models.Manga, int, error) {
	req.NormalizeSearch()

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(req.Query); q != "" {
		p := arg("%" + strings.ToLower(q) + "%")
		conds = append(conds, fmt.Sprintf("(LOWER(m.title) LIKE %s OR LOWER(m.author) LIKE %s)", p, p))
	}
	if req.Status != "" {
		conds = append(conds, "m.status = "+arg(req.Status))
	}
	for _, g := range req.Genres {
		if g = strings.TrimSpace(g); g != "" {
			conds = append(conds, "m.genres LIKE "+arg(`%"`+g+`"%`))
		}
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM manga m` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, mapDBError(err, "count_manga")
	}

	order := " ORDER BY m.title ASC"
	switch req.Sort {
	case "rating":
		order = " ORDER BY (SELECT COALESCE(AVG(value), 0) FROM ratings r WHERE r.manga_id = m.id) DESC, m.title ASC"
	case "newest":
		order = " ORDER BY m.created_at DESC"
	}

	query := mangaSelect + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapDBError(err, "search_manga")
	}
	defer rows.Close()

	var result []models.Manga
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, 0, mapDBError(err, "scan_manga")
		}
		result = append(result, *m)
	}
	return result, total, rows.Err()
}

func (r *mangaRepository) ListGenres(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT genres FROM manga`)
	if err != nil {
		return nil, mapDBError(err, "list_genres")
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var genres []string
	for rows.Next() {
		var genresJSON string
		if err := rows.Scan(&genresJSON); err != nil {
			return nil, mapDBError(err, "scan_genres")
		}
		var list []string
		if err := json.Unmarshal([]byte(genresJSON), &list); err != nil {
			continue
		}
		for _, g := range list {
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				genres = append(genres, g)
			}
		}
	}
	return genres, rows.Err()
}

func (r *mangaRepository) Popular(ctx context.Context, limit int) ([]models.Manga, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := mangaSelect + `
		ORDER BY (SELECT COALESCE(AVG(value), 0) FROM ratings r WHERE r.manga_id = m.id) DESC,
		         (SELECT COUNT(*) FROM ratings r WHERE r.manga_id = m.id) DESC,
		         m.title ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, mapDBError(err, "popular_manga")
	}
	defer rows.Close()

	var result []models.Manga
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, mapDBError(err, "scan_manga")
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (r *mangaRepository) Stats(ctx context.Context) (*models.CatalogStats, error) {
	stats := &models.CatalogStats{ByStatus: make(map[string]int)}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE((SELECT COUNT(*) FROM chapters), 0),
		       COALESCE((SELECT COUNT(*) FROM ratings), 0)
		FROM manga
	`).Scan(&stats.TotalManga, &stats.TotalChapters, &stats.TotalRatings)
	if err != nil {
		return nil, mapDBError(err, "catalog_stats")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM manga GROUP BY status`)
	if err != nil {
		return nil, mapDBError(err, "catalog_stats_by_status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, mapDBError(err, "scan_catalog_stats")
		}
		stats.ByStatus[status] = count
	}
	return stats, rows.Err()
}

func (r *mangaRepository) CreateChapter(ctx context.Context, ch *models.Chapter) error {
	pages, err := json.Marshal(ch.Pages)
	if err != nil {
		return models.NewValidationError("invalid pages")
	}
	query := `
		INSERT INTO chapters (id, manga_id, number, volume, title, language,
		                      source, published_at, pages, external_url, is_external)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		ch.ID, ch.MangaID, ch.Number, ch.Volume, ch.Title, ch.Language,
		ch.Source, ch.PublishedAt, string(pages), ch.ExternalURL, ch.IsExternal)
	if err != nil {
		return mapDBError(err, "create_chapter")
	}
	return nil
}

func (r *mangaRepository) ListChapters(ctx context.Context, mangaID string, languages []string, limit, offset int) ([]models.Chapter, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	args := []interface{}{mangaID}
	where := `WHERE manga_id = $1`
	if len(languages) > 0 {
		placeholders := make([]string, len(languages))
		for i, lang := range languages {
			args = append(args, lang)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where += ` AND language IN (` + strings.Join(placeholders, ", ") + `)`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapDBError(err, "count_chapters")
	}

	query := `
		SELECT id, manga_id, number, volume, title, language, source,
		       published_at, pages, external_url, is_external
		FROM chapters ` + where +
		fmt.Sprintf(` ORDER BY number ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapDBError(err, "list_chapters")
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, 0, mapDBError(err, "scan_chapter")
		}
		chapters = append(chapters, *ch)
	}
	return chapters, total, rows.Err()
}

func (r *mangaRepository) GetChapter(ctx context.Context, chapterID, source string) (*models.Chapter, error) {
	args := []interface{}{chapterID}
	query := `
		SELECT id, manga_id, number, volume, title, language, source,
		       published_at, pages, external_url, is_external
		FROM chapters WHERE id = $1
	`
	if source != "" {
		query += ` AND source = $2`
		args = append(args, source)
	}
	ch, err := scanChapter(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("chapter not found", models.ErrChapterNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_chapter")
	}
	return ch, nil
}

func scanChapter(row rowScanner) (*models.Chapter, error) {
	ch := &models.Chapter{}
	var volume sql.NullInt64
	var publishedAt sql.NullTime
	var pagesJSON string
	err := row.Scan(&ch.ID, &ch.MangaID, &ch.Number, &volume, &ch.Title, &ch.Language,
		&ch.Source, &publishedAt, &pagesJSON, &ch.ExternalURL, &ch.IsExternal)
	if err != nil {
		return nil, err
	}
	if volume.Valid {
		v := int(volume.Int64)
		ch.Volume = &v
	}
	if publishedAt.Valid {
		ch.PublishedAt = publishedAt.Time
	}
	if err := json.Unmarshal([]byte(pagesJSON), &ch.Pages); err != nil {
		ch.Pages = nil
	}
	return ch, nil
}
