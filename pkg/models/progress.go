package models

import "time"

// ProgressRecord is a user's last-read position for a manga.
// Independent of LibraryEntry: progress may exist without a library entry.
// Primary key (user_id, manga_id).
type ProgressRecord struct {
	UserID         string    `json:"user_id" db:"user_id"`
	MangaID        string    `json:"manga_id" db:"manga_id"`
	CurrentChapter int       `json:"current_chapter" db:"current_chapter"`
	LastReadAt     time.Time `json:"last_read_at" db:"last_read_at"`
}

// UpdateProgressRequest mutates a progress record, optionally also
// setting the library status in the same intent.
type UpdateProgressRequest struct {
	MangaID        string `json:"manga_id"`
	CurrentChapter int    `json:"current_chapter"`
	Status         string `json:"status,omitempty"`
}

// BatchUpdateProgressRequest applies several updates in one call.
type BatchUpdateProgressRequest struct {
	Updates []UpdateProgressRequest `json:"updates"`
}
