package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"collabdesk/internal/models"
)

var ErrChatAccessDenied = errors.New("chat access denied")

// ChatGateway is the chat counterpart of the note gateway: the same room,
// presence and broadcast pattern without the lock machinery.
type ChatGateway struct {
	store ChatStore
	hub   *Hub

	mu       sync.Mutex
	presence *Registry
}

func NewChatGateway(store ChatStore, hub *Hub) *ChatGateway {
	return &ChatGateway{
		store:    store,
		hub:      hub,
		presence: NewRegistry(),
	}
}

// Connect validates tenant access, registers presence and sends the new
// client the connected-users snapshot.
func (g *ChatGateway) Connect(ctx context.Context, session *Session) error {
	ok, err := g.store.HasAccess(ctx, session.ChatID, session.CompanyCode)
	if err != nil {
		return fmt.Errorf("failed to validate chat access: %w", err)
	}
	if !ok {
		return ErrChatAccessDenied
	}

	entry := models.PresenceEntry{
		UserID:      session.UserID,
		Username:    session.Username,
		CompanyCode: session.CompanyCode,
	}

	g.mu.Lock()
	first := g.presence.Add(session.RoomKey, entry)
	snapshot := g.presence.List(session.RoomKey)
	g.mu.Unlock()

	session.queueSend(encodeEvent(EventPresenceSnapshot, snapshot))

	// A second tab for the same user bumps the refcount without announcing
	// a join the room already saw.
	if first {
		g.hub.BroadcastExcept(session.RoomKey, encodeEvent(EventPresenceJoined, entry), session)
	}

	log.Printf("✓ %s connected to chat %d", session.Username, session.ChatID)
	return nil
}

// HandleDisconnect removes the presence entry and notifies the room.
func (g *ChatGateway) HandleDisconnect(session *Session) {
	g.mu.Lock()
	removed := g.presence.Remove(session.RoomKey, session.Username)
	g.mu.Unlock()

	if removed {
		g.hub.BroadcastExcept(session.RoomKey, encodeEvent(EventPresenceLeft, models.PresenceEntry{
			UserID:      session.UserID,
			Username:    session.Username,
			CompanyCode: session.CompanyCode,
		}), session)
	}
}

// HandleMessage dispatches one inbound chat frame.
func (g *ChatGateway) HandleMessage(session *Session, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		session.sendError("malformed message", 0, 0)
		return
	}

	switch envelope.Type {
	case EventSendMessage:
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Content == "" {
			session.sendError("malformed send-message payload", 0, 0)
			return
		}
		g.handleSend(session, payload.Content)

	case EventTyping:
		var payload struct {
			IsTyping bool `json:"is_typing"`
		}
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			session.sendError("malformed typing payload", 0, 0)
			return
		}
		g.hub.BroadcastExcept(session.RoomKey, encodeEvent(EventUserTyping, TypingEvent{
			UserID:   session.UserID,
			Username: session.Username,
			IsTyping: payload.IsTyping,
		}), session)

	default:
		session.sendError(fmt.Sprintf("unknown event type %q", envelope.Type), 0, 0)
	}
}

func (g *ChatGateway) handleSend(session *Session, content string) {
	message, err := g.store.SaveMessage(context.Background(), session.ChatID, session.UserID, content)
	if err != nil {
		log.Printf("⚠️  Failed to save chat message: %v", err)
		session.sendError("failed to send message", 0, 0)
		return
	}

	g.hub.Broadcast(session.RoomKey, encodeEvent(EventMessage, message))
}

// PresenceFor returns the current presence list for a room.
func (g *ChatGateway) PresenceFor(roomKey string) []models.PresenceEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.presence.List(roomKey)
}
