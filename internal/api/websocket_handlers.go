package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleNoteWebSocket handles WebSocket connections for collaborative note editing
func (h *Handler) HandleNoteWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleNoteConnection(w, r)
}

// HandleChatWebSocket handles WebSocket connections for chat rooms
func (h *Handler) HandleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleChatConnection(w, r)
}
