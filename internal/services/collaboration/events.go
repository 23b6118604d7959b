package collaboration

import (
	"encoding/json"
	"fmt"
	"log"

	"collabdesk/internal/models"
)

// Wire event types for the note and chat channels.
const (
	// client → server
	EventAcquireLock = "acquire-lock"
	EventReleaseLock = "release-lock"
	EventEditLine    = "edit-line"
	EventSendMessage = "send-message"
	EventTyping      = "typing"

	// server → room
	EventLockGranted    = "lock-granted"
	EventLockReleased   = "lock-released"
	EventLineUpdated    = "line-updated"
	EventDocumentGrown  = "document-grown"
	EventPresenceJoined = "presence-joined"
	EventPresenceLeft   = "presence-left"
	EventMessage        = "message"
	EventUserTyping     = "user-typing"

	// server → single client
	EventPresenceSnapshot = "presence-snapshot"
	EventLockSnapshot     = "lock-snapshot"
	EventError            = "error"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LockRequest is the payload of acquire-lock and release-lock.
type LockRequest struct {
	LineNumber int `json:"line_number"`
}

// LockEvent is broadcast for lock-granted and lock-released, and carried in
// lock snapshots.
type LockEvent struct {
	Username   string `json:"username"`
	NoteID     uint   `json:"note_id"`
	LineNumber int    `json:"line_number"`
}

// GrowthEvent is broadcast when a note is extended with a new batch of
// lines.
type GrowthEvent struct {
	NoteID   uint              `json:"note_id"`
	NewLines []models.NoteLine `json:"new_lines"`
}

// ErrorEvent is sent to the offending connection only, never broadcast.
type ErrorEvent struct {
	Message    string `json:"message"`
	NoteID     uint   `json:"note_id,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
}

// TypingEvent relays a typing indicator inside a chat room.
type TypingEvent struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// encodeEvent wraps a payload in the wire envelope. Payloads are built from
// our own structs, so a marshal failure is a programming error; it is logged
// and produces an empty frame rather than a panic.
func encodeEvent(eventType string, data interface{}) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("⚠️  Failed to encode %s event: %v", eventType, err)
		payload = []byte("{}")
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Data: payload})
	if err != nil {
		log.Printf("⚠️  Failed to encode %s envelope: %v", eventType, err)
		return []byte(`{"type":"error"}`)
	}
	return frame
}

// NoteRoomKey builds the broadcast room key for a note. The company code is
// part of the key so broadcasts can never cross tenants.
func NoteRoomKey(companyCode string, noteID uint) string {
	return fmt.Sprintf("note:%s:%d", companyCode, noteID)
}

// ChatRoomKey builds the broadcast room key for a chat room.
func ChatRoomKey(companyCode string, chatID uint) string {
	return fmt.Sprintf("chat:%s:%d", companyCode, chatID)
}
