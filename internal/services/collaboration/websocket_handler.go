package collaboration

import (
	"log"
	"net/http"
	"strconv"

	"collabdesk/internal/auth"
	"collabdesk/internal/middleware"
	"collabdesk/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: validate origin against the configured frontend host
		return true
	},
}

// WebSocketHandler upgrades HTTP connections into note and chat sessions.
// Every connection is authenticated before the upgrade; a missing or
// invalid credential is refused before any room join.
type WebSocketHandler struct {
	verifier    *auth.Verifier
	companies   CompanyResolver
	noteGateway *NoteGateway
	chatGateway *ChatGateway
	hub         *Hub
}

func NewWebSocketHandler(verifier *auth.Verifier, companies CompanyResolver, noteGateway *NoteGateway, chatGateway *ChatGateway, hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{
		verifier:    verifier,
		companies:   companies,
		noteGateway: noteGateway,
		chatGateway: chatGateway,
		hub:         hub,
	}
}

// HandleNoteConnection serves the collaborative note editing channel.
// The note id comes from the URL, the credential from the Authorization
// header or the token query parameter.
func (h *WebSocketHandler) HandleNoteConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	noteID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || noteID == 0 {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}

	company, err := h.companies.GetByCode(ctx, identity.CompanyCode)
	if err != nil {
		http.Error(w, "unknown company", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	meta := models.NewSession(identity.UserID, identity.Username, identity.CompanyCode)
	meta.CompanyID = company.ID
	meta.NoteID = uint(noteID)
	meta.RoomKey = NoteRoomKey(identity.CompanyCode, uint(noteID))

	session := newSession(meta, conn, h.hub, h.noteGateway)
	h.hub.Register(session)

	if err := h.noteGateway.Connect(ctx, session); err != nil {
		log.Printf("Note connect rejected for %s: %v", identity.Username, err)
		h.hub.Unregister(session)
		conn.Close()
		return
	}

	go session.WritePump()
	go session.ReadPump()
}

// HandleChatConnection serves the chat channel.
func (h *WebSocketHandler) HandleChatConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	chatID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || chatID == 0 {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	company, err := h.companies.GetByCode(ctx, identity.CompanyCode)
	if err != nil {
		http.Error(w, "unknown company", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	meta := models.NewSession(identity.UserID, identity.Username, identity.CompanyCode)
	meta.CompanyID = company.ID
	meta.ChatID = uint(chatID)
	meta.RoomKey = ChatRoomKey(identity.CompanyCode, uint(chatID))

	session := newSession(meta, conn, h.hub, h.chatGateway)
	h.hub.Register(session)

	if err := h.chatGateway.Connect(ctx, session); err != nil {
		log.Printf("Chat connect rejected for %s: %v", identity.Username, err)
		h.hub.Unregister(session)
		conn.Close()
		return
	}

	go session.WritePump()
	go session.ReadPump()
}

func (h *WebSocketHandler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	credential := middleware.BearerToken(r)
	if credential == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return nil, false
	}

	identity, err := h.verifier.Verify(credential)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}

	return identity, true
}
