package models

import "time"

// LibraryStatus represents valid library entry statuses
type LibraryStatus string

const (
	LibraryStatusReading    LibraryStatus = "reading"
	LibraryStatusCompleted  LibraryStatus = "completed"
	LibraryStatusPlanToRead LibraryStatus = "plan_to_read"
	LibraryStatusDropped    LibraryStatus = "dropped"
	LibraryStatusOnHold     LibraryStatus = "on_hold"
	LibraryStatusReReading  LibraryStatus = "re_reading"
)

// LibraryEntry is collection membership with a status.
// Primary key (user_id, manga_id).
type LibraryEntry struct {
	UserID      string    `json:"user_id" db:"user_id"`
	MangaID     string    `json:"manga_id" db:"manga_id"`
	Status      string    `json:"status" db:"status"`
	AddedAt     time.Time `json:"added_at" db:"added_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// LibraryItem is a library entry joined with its manga for API responses.
type LibraryItem struct {
	LibraryEntry
	Manga *Manga `json:"manga,omitempty"`
}

// AddToLibraryRequest
type AddToLibraryRequest struct {
	MangaID string `json:"manga_id"`
	Status  string `json:"status"`
}

// LibraryStats counts entries per status for one user.
type LibraryStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// IsValidLibraryStatus validates a library status value.
func IsValidLibraryStatus(status string) bool {
	switch LibraryStatus(status) {
	case LibraryStatusReading, LibraryStatusCompleted, LibraryStatusPlanToRead,
		LibraryStatusDropped, LibraryStatusOnHold, LibraryStatusReReading:
		return true
	default:
		return false
	}
}
