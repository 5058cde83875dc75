package models

import "time"

// Chat room topic ids: "general" plus one room per manga.
const GeneralRoom = "general"

// MangaRoom returns the topic id of a manga's chat room.
func MangaRoom(mangaID string) string {
	return "manga:" + mangaID
}

// Chat message types (server -> client envelope discriminator).
const (
	ChatTypeMessage        = "message"
	ChatTypeJoin           = "join"
	ChatTypeLeave          = "leave"
	ChatTypeUserList       = "user_list"
	ChatTypeProgressUpdate = "progress_update"
	ChatTypeNotification   = "notification"
	ChatTypeSystem         = "system"
)

const MaxChatMessageLength = 1000

// ChatMessage is the WebSocket envelope for all room traffic.
// Not persisted; Timestamp is unix seconds.
type ChatMessage struct {
	Type      string     `json:"type"`
	Room      string     `json:"room,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Message   string     `json:"message,omitempty"`
	Users     []ChatUser `json:"users,omitempty"`   // user_list only
	Chapter   int        `json:"chapter,omitempty"` // progress_update only
	Timestamp int64      `json:"timestamp"`
}

// ChatUser - minimal user info for the presence roster.
type ChatUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ChatRoomStatus describes a room for the HTTP status endpoint.
type ChatRoomStatus struct {
	Room         string     `json:"room"`
	MemberCount  int        `json:"member_count"`
	Active       bool       `json:"active"`
	OnlineUsers  []ChatUser `json:"online_users"`
	LastActivity time.Time  `json:"last_activity"`
}
