package collaboration

import (
	"context"
	"sync"
	"testing"

	"collabdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatStore struct {
	mu       sync.Mutex
	owners   map[uint]string
	messages []models.Message
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{owners: make(map[uint]string)}
}

func (f *fakeChatStore) HasAccess(ctx context.Context, chatID uint, companyCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[chatID] == companyCode, nil
}

func (f *fakeChatStore) SaveMessage(ctx context.Context, chatID, senderID uint, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message := models.Message{
		ID:       uuid.NewString(),
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
	}
	f.messages = append(f.messages, message)
	return &message, nil
}

func (f *fakeChatStore) saved() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestChatGateway(t *testing.T) (*ChatGateway, *fakeChatStore, *Hub) {
	t.Helper()
	store := newFakeChatStore()
	hub := NewHub()
	hub.Start()
	return NewChatGateway(store, hub), store, hub
}

func connectChat(t *testing.T, g *ChatGateway, hub *Hub, chatID, userID uint, username, companyCode string) *Session {
	t.Helper()

	meta := models.NewSession(userID, username, companyCode)
	meta.ChatID = chatID
	meta.RoomKey = ChatRoomKey(companyCode, chatID)

	session := newSession(meta, nil, hub, g)
	hub.Register(session)
	require.NoError(t, g.Connect(context.Background(), session))
	require.Equal(t, EventPresenceSnapshot, recvEvent(t, session).Type)
	return session
}

func sendChatFrame(t *testing.T, g *ChatGateway, s *Session, raw string) {
	t.Helper()
	g.HandleMessage(s, []byte(raw))
}

func TestChatConnectRejectsWrongCompany(t *testing.T) {
	g, store, hub := newTestChatGateway(t)
	store.owners[1] = "acme"

	meta := models.NewSession(9, "mallory", "globex")
	meta.ChatID = 1
	meta.RoomKey = ChatRoomKey("globex", 1)
	mallory := newSession(meta, nil, hub, g)

	err := g.Connect(context.Background(), mallory)
	require.ErrorIs(t, err, ErrChatAccessDenied)
}

func TestChatMessageIsSavedAndBroadcast(t *testing.T) {
	g, store, hub := newTestChatGateway(t)
	store.owners[1] = "acme"

	alice := connectChat(t, g, hub, 1, 1, "alice", "acme")
	bob := connectChat(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendChatFrame(t, g, alice, `{"type":"send-message","data":{"content":"hi all"}}`)

	// The sender gets the persisted message back too.
	for _, s := range []*Session{alice, bob} {
		env := recvEvent(t, s)
		require.Equal(t, EventMessage, env.Type)
		var message models.Message
		decodeData(t, env, &message)
		assert.Equal(t, "hi all", message.Content)
		assert.Equal(t, uint(1), message.SenderID)
		assert.NotEmpty(t, message.ID)
	}
	assert.Equal(t, 1, store.saved())
}

func TestChatEmptyMessageRejected(t *testing.T) {
	g, store, hub := newTestChatGateway(t)
	store.owners[1] = "acme"

	alice := connectChat(t, g, hub, 1, 1, "alice", "acme")

	sendChatFrame(t, g, alice, `{"type":"send-message","data":{"content":""}}`)
	require.Equal(t, EventError, recvEvent(t, alice).Type)
	assert.Zero(t, store.saved())
}

func TestChatTypingIndicatorSkipsSender(t *testing.T) {
	g, store, hub := newTestChatGateway(t)
	store.owners[1] = "acme"

	alice := connectChat(t, g, hub, 1, 1, "alice", "acme")
	bob := connectChat(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendChatFrame(t, g, alice, `{"type":"typing","data":{"is_typing":true}}`)

	env := recvEvent(t, bob)
	require.Equal(t, EventUserTyping, env.Type)
	var typing TypingEvent
	decodeData(t, env, &typing)
	assert.Equal(t, "alice", typing.Username)
	assert.True(t, typing.IsTyping)

	assertNoFrames(t, alice)
}

func TestChatSecondTabKeepsPresence(t *testing.T) {
	g, store, hub := newTestChatGateway(t)
	store.owners[1] = "acme"

	tab1 := connectChat(t, g, hub, 1, 1, "alice", "acme")
	bob := connectChat(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, tab1).Type)

	// A second tab joins quietly: no duplicate join announcement.
	tab2 := connectChat(t, g, hub, 1, 1, "alice", "acme")
	assertNoFrames(t, bob)
	require.Len(t, g.PresenceFor(ChatRoomKey("acme", 1)), 2)

	// Closing one tab leaves the user on the roster.
	g.HandleDisconnect(tab1)
	assertNoFrames(t, bob)
	require.Len(t, g.PresenceFor(ChatRoomKey("acme", 1)), 2)

	// The last tab leaving announces the departure.
	g.HandleDisconnect(tab2)
	env := recvEvent(t, bob)
	require.Equal(t, EventPresenceLeft, env.Type)
	var left models.PresenceEntry
	decodeData(t, env, &left)
	assert.Equal(t, "alice", left.Username)
	require.Len(t, g.PresenceFor(ChatRoomKey("acme", 1)), 1)
}

func TestChatDisconnectNotifiesRoom(t *testing.T) {
	g, store, hub := newTestChatGateway(t)
	store.owners[1] = "acme"

	alice := connectChat(t, g, hub, 1, 1, "alice", "acme")
	bob := connectChat(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	g.HandleDisconnect(alice)

	env := recvEvent(t, bob)
	require.Equal(t, EventPresenceLeft, env.Type)
	var left models.PresenceEntry
	decodeData(t, env, &left)
	assert.Equal(t, "alice", left.Username)

	presence := g.PresenceFor(ChatRoomKey("acme", 1))
	require.Len(t, presence, 1)
	assert.Equal(t, "bob", presence[0].Username)

	// A second disconnect for the same session stays quiet.
	g.HandleDisconnect(alice)
	assertNoFrames(t, bob)
}
