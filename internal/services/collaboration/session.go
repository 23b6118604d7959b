package collaboration

import (
	"log"
	"time"

	"collabdesk/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// MessageHandler receives a session's inbound frames and its disconnect.
// The note and chat gateways implement it.
type MessageHandler interface {
	HandleMessage(session *Session, data []byte)
	HandleDisconnect(session *Session)
}

// Session is one live websocket connection inside a room.
type Session struct {
	*models.Session
	Conn    *websocket.Conn
	Send    chan []byte
	hub     *Hub
	handler MessageHandler
}

func newSession(meta *models.Session, conn *websocket.Conn, hub *Hub, handler MessageHandler) *Session {
	return &Session{
		Session: meta,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		hub:     hub,
		handler: handler,
	}
}

// closeConn closes the underlying connection if one is attached.
func (s *Session) closeConn() {
	if s.Conn != nil {
		s.Conn.Close()
	}
}

// queueSend queues a frame for this session only. Fire and forget: a full
// buffer drops the frame rather than blocking the caller.
func (s *Session) queueSend(message []byte) {
	select {
	case s.Send <- message:
	default:
		log.Printf("⚠️  Session %s buffer full, dropping direct frame", s.ID)
	}
}

// sendError emits an error event to this connection only, never to the room.
func (s *Session) sendError(message string, noteID uint, lineNumber int) {
	s.queueSend(encodeEvent(EventError, ErrorEvent{
		Message:    message,
		NoteID:     noteID,
		LineNumber: lineNumber,
	}))
}

// ReadPump reads frames from the connection and hands them to the gateway.
// Disconnect cleanup runs synchronously here, before the session is removed
// from its room, so no ghost lock survives a dropped connection.
func (s *Session) ReadPump() {
	defer func() {
		s.handler.HandleDisconnect(s)
		s.hub.Unregister(s)
		s.Conn.Close()
	}()

	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		s.LastActiveAt = time.Now()
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.LastActiveAt = time.Now()
		s.handler.HandleMessage(s, message)
	}
}

// WritePump writes queued frames to the connection and keeps it alive with
// pings. Runs in its own goroutine so a slow client never blocks readers.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain additional queued frames
			n := len(s.Send)
			for i := 0; i < n; i++ {
				if err := s.Conn.WriteMessage(websocket.TextMessage, <-s.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
