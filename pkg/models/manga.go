package models

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// MangaStatus represents valid manga status values
type MangaStatus string

const (
	MangaStatusOngoing   MangaStatus = "ongoing"
	MangaStatusCompleted MangaStatus = "completed"
	MangaStatusHiatus    MangaStatus = "hiatus"
	MangaStatusDropped   MangaStatus = "dropped"
	MangaStatusCancelled MangaStatus = "cancelled"
)

// Manga represents a catalog entry. The ID is an opaque string and may
// carry an external-source prefix (e.g. "md-..." for MangaDex imports).
type Manga struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	Status          string    `json:"status" db:"status"`
	TotalChapters   int       `json:"total_chapters" db:"total_chapters"`
	Genres          []string  `json:"genres"`
	Description     string    `json:"description" db:"description"`
	CoverURL        string    `json:"cover_url,omitempty" db:"cover_url"`
	PublicationYear int       `json:"publication_year,omitempty" db:"publication_year"`
	Rating          float64   `json:"rating"`       // derived from ratings
	RatingCount     int       `json:"rating_count"` // derived from ratings
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Chapter represents a single chapter of a manga. External chapters have
// no pages and carry the URL readers must be directed to instead.
type Chapter struct {
	ID          string    `json:"id" db:"id"`
	MangaID     string    `json:"manga_id" db:"manga_id"`
	Number      float64   `json:"number" db:"number"`
	Volume      *int      `json:"volume,omitempty" db:"volume"`
	Title       string    `json:"title" db:"title"`
	Language    string    `json:"language" db:"language"`
	Source      string    `json:"source" db:"source"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	Pages       []string  `json:"pages,omitempty"`
	ExternalURL string    `json:"external_url,omitempty" db:"external_url"`
	IsExternal  bool      `json:"is_external" db:"is_external"`
}

// MangaSearchRequest represents search parameters
type MangaSearchRequest struct {
	Query  string   `json:"query" form:"query"`
	Genres []string `json:"genres" form:"genres"`
	Status string   `json:"status" form:"status"`
	Sort   string   `json:"sort" form:"sort"` // title, rating, newest
	Limit  int      `json:"limit" form:"limit"`
	Offset int      `json:"offset" form:"offset"`
}

// MangaListResponse represents paginated manga results
type MangaListResponse struct {
	Data    []Manga `json:"data"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
	HasMore bool    `json:"has_more"`
}

// CreateMangaRequest represents an admin request to create new manga
type CreateMangaRequest struct {
	ID              string   `json:"id"` // optional; generated when empty
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Status          string   `json:"status"`
	TotalChapters   int      `json:"total_chapters"`
	Genres          []string `json:"genres"`
	Description     string   `json:"description"`
	CoverURL        string   `json:"cover_url"`
	PublicationYear int      `json:"publication_year"`
}

// UpdateMangaRequest represents an admin request to update manga
type UpdateMangaRequest struct {
	Title         *string  `json:"title"`
	Author        *string  `json:"author"`
	Status        *string  `json:"status"`
	TotalChapters *int     `json:"total_chapters"`
	Genres        []string `json:"genres"`
	Description   *string  `json:"description"`
	CoverURL      *string  `json:"cover_url"`
}

// CatalogStats summarizes the catalog for GET /manga/stats.
type CatalogStats struct {
	TotalManga    int            `json:"total_manga"`
	TotalChapters int            `json:"total_chapters"`
	ByStatus      map[string]int `json:"by_status"`
	TotalRatings  int            `json:"total_ratings"`
}

// IsValidMangaStatus validates status against schema constraints
func IsValidMangaStatus(status string) bool {
	switch MangaStatus(status) {
	case MangaStatusOngoing, MangaStatusCompleted, MangaStatusHiatus,
		MangaStatusDropped, MangaStatusCancelled:
		return true
	default:
		return false
	}
}

// ValidateManga enforces catalog invariants: non-empty title, at least
// one genre, known status, absolute http(s) cover URL when present.
func ValidateManga(m *Manga) error {
	if strings.TrimSpace(m.Title) == "" {
		return errors.New("title is required")
	}
	if len(m.Genres) == 0 {
		return errors.New("at least one genre is required")
	}
	if !IsValidMangaStatus(m.Status) {
		return errors.New("invalid status: must be ongoing, completed, hiatus, dropped or cancelled")
	}
	if m.TotalChapters < 0 {
		return errors.New("total_chapters must not be negative")
	}
	if m.CoverURL != "" {
		u, err := url.Parse(m.CoverURL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.New("cover_url must be an absolute http(s) URL")
		}
	}
	return nil
}

// NormalizeSearch clamps pagination to sane bounds.
func (req *MangaSearchRequest) NormalizeSearch() {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
}
