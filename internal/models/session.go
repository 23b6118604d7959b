package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session records one live websocket connection to a room. Purely in-memory;
// sessions never touch the database.
type Session struct {
	ID           string    `json:"id"`
	RoomKey      string    `json:"-"`
	NoteID       uint      `json:"note_id,omitempty"`
	ChatID       uint      `json:"chat_id,omitempty"`
	UserID       uint      `json:"user_id"`
	Username     string    `json:"username"`
	CompanyID    uint      `json:"-"`
	CompanyCode  string    `json:"company_code"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// PresenceEntry is the wire-level view of a connected user, sent in presence
// snapshots and join/leave events.
type PresenceEntry struct {
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	CompanyCode string `json:"company_code"`
}

func NewSession(userID uint, username, companyCode string) *Session {
	now := time.Now()
	return &Session{
		ID:           ksuid.New().String(),
		UserID:       userID,
		Username:     username,
		CompanyCode:  companyCode,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}
