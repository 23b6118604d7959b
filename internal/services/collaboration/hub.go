package collaboration

import (
	"log"
	"sync"
)

// Hub fans broadcasts out to rooms of websocket sessions. Rooms are keyed
// by strings that always include the company code, so a broadcast can never
// reach another tenant even if note or chat ids collide.
//
// One event-loop goroutine owns the room maps; registration, removal and
// broadcasts all flow through channels.
type Hub struct {
	rooms      map[string]map[*Session]bool
	register   chan *Session
	unregister chan *Session
	broadcast  chan *BroadcastMessage
	mu         sync.RWMutex

	done chan struct{}
	once sync.Once
}

// BroadcastMessage is a frame addressed to one room. If Skip is set, that
// session does not receive the frame.
type BroadcastMessage struct {
	RoomKey string
	Message []byte
	Skip    *Session
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Session]bool),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Start begins the hub event loop.
func (h *Hub) Start() {
	go func() {
		for {
			select {
			case <-h.done:
				return

			case session := <-h.register:
				h.handleRegister(session)

			case session := <-h.unregister:
				h.handleUnregister(session)

			case msg := <-h.broadcast:
				h.handleBroadcast(msg)
			}
		}
	}()

	log.Println("✓ Room hub started")
}

// Register joins a session to its room.
func (h *Hub) Register(session *Session) {
	select {
	case h.register <- session:
	case <-h.done:
	}
}

// Unregister removes a session from its room and closes its send channel.
func (h *Hub) Unregister(session *Session) {
	select {
	case h.unregister <- session:
	case <-h.done:
	}
}

// Broadcast queues a frame for every session in the room.
func (h *Hub) Broadcast(roomKey string, message []byte) {
	h.BroadcastExcept(roomKey, message, nil)
}

// BroadcastExcept queues a frame for every session in the room except skip.
func (h *Hub) BroadcastExcept(roomKey string, message []byte, skip *Session) {
	select {
	case h.broadcast <- &BroadcastMessage{RoomKey: roomKey, Message: message, Skip: skip}:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[session.RoomKey] == nil {
		h.rooms[session.RoomKey] = make(map[*Session]bool)
	}
	h.rooms[session.RoomKey][session] = true

	log.Printf("  Session %s joined room %s (total: %d)",
		session.ID, session.RoomKey, len(h.rooms[session.RoomKey]))
}

func (h *Hub) handleUnregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.rooms[session.RoomKey]
	if !ok {
		return
	}
	if _, ok := sessions[session]; !ok {
		return
	}

	delete(sessions, session)
	close(session.Send)
	if len(sessions) == 0 {
		delete(h.rooms, session.RoomKey)
	}

	log.Printf("  Session %s left room %s (remaining: %d)",
		session.ID, session.RoomKey, len(sessions))
}

func (h *Hub) handleBroadcast(msg *BroadcastMessage) {
	h.mu.RLock()
	sessions := h.rooms[msg.RoomKey]
	h.mu.RUnlock()

	for session := range sessions {
		if msg.Skip != nil && session == msg.Skip {
			continue
		}

		select {
		case session.Send <- msg.Message:
		default:
			// Buffer full - connection is slow or dead. Closing the
			// connection makes its read pump run the normal disconnect path.
			log.Printf("⚠️  Session %s buffer full, dropping connection", session.ID)
			session.closeConn()
		}
	}
}

// RoomSize returns the number of sessions currently in a room.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

// Shutdown closes every connection and stops the event loop.
func (h *Hub) Shutdown() {
	log.Println("🛑 Shutting down room hub...")

	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sessions := range h.rooms {
		for session := range sessions {
			close(session.Send)
			session.closeConn()
		}
	}
	h.rooms = make(map[string]map[*Session]bool)

	log.Println("✓ Room hub shutdown complete")
}
