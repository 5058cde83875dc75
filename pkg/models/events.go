package models

import "time"

// ProgressEvent is the frame broadcast on the TCP progress bus and
// re-projected to SSE clients and chat rooms. Timestamp is unix seconds.
// MangaID never crosses the TCP wire; it only routes the chat-room
// projection inside the gateway.
type ProgressEvent struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	MangaTitle string `json:"manga_title"`
	Chapter    int    `json:"chapter"`
	Timestamp  int64  `json:"timestamp"`
	MangaID    string `json:"-"`
}

// Notification type values broadcast on the UDP bus.
const (
	NotificationMangaUpdate    = "manga_update"
	NotificationChapterRelease = "chapter_release"
	NotificationLibraryAdd     = "library_add"
	NotificationLibraryRemove  = "library_remove"
	NotificationSystem         = "system"
)

// Notification is a fire-and-forget domain event datagram.
// Timestamp is unix seconds.
type Notification struct {
	Type      string `json:"type"`
	MangaID   string `json:"manga_id,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewNotification stamps a notification with the current time.
func NewNotification(typ, mangaID, message string) Notification {
	return Notification{
		Type:      typ,
		MangaID:   mangaID,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
}
