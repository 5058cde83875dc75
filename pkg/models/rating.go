package models

import "time"

// Rating is one user's rating of one manga. Primary key (user_id, manga_id).
type Rating struct {
	UserID    string    `json:"user_id" db:"user_id"`
	MangaID   string    `json:"manga_id" db:"manga_id"`
	Value     int       `json:"value" db:"value"` // 1..5
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RateMangaRequest
type RateMangaRequest struct {
	Rating int `json:"rating"`
}

// RatingStats are the derived aggregates over a manga's ratings.
// UserRating is set only when the caller is authenticated and has rated.
type RatingStats struct {
	AverageRating      float64     `json:"average_rating"`
	TotalRatings       int         `json:"total_ratings"`
	RatingDistribution map[int]int `json:"rating_distribution"`
	UserRating         *int        `json:"user_rating"`
}

// IsValidRating validates a rating value.
func IsValidRating(v int) bool {
	return v >= 1 && v <= 5
}
