package collaboration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"collabdesk/internal/models"
	"collabdesk/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNoteStore is an in-memory NoteStore. Notes are declared up front with
// an owning company and a line count.
type fakeNoteStore struct {
	mu         sync.Mutex
	owners     map[uint]string
	lineCounts map[uint]int
	updates    []models.LinePatch

	// beforeUpdate, when set, runs at the top of UpdateLine to simulate
	// state changing while the write is in flight.
	beforeUpdate func()
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{
		owners:     make(map[uint]string),
		lineCounts: make(map[uint]int),
	}
}

func (f *fakeNoteStore) addNote(noteID uint, companyCode string, lineCount int) {
	f.owners[noteID] = companyCode
	f.lineCounts[noteID] = lineCount
}

func (f *fakeNoteStore) HasAccess(ctx context.Context, noteID uint, companyCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[noteID] == companyCode, nil
}

func (f *fakeNoteStore) LineCount(ctx context.Context, noteID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lineCounts[noteID], nil
}

func (f *fakeNoteStore) AppendLines(ctx context.Context, noteID uint, n int) ([]models.NoteLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := f.lineCounts[noteID]
	lines := make([]models.NoteLine, 0, n)
	for i := 1; i <= n; i++ {
		lines = append(lines, models.NoteLine{
			NoteID:     noteID,
			LineNumber: start + i,
			Color:      models.DefaultLineColor,
			FontSize:   models.DefaultLineFontSize,
		})
	}
	f.lineCounts[noteID] = start + n
	return lines, nil
}

func (f *fakeNoteStore) UpdateLine(ctx context.Context, noteID uint, patch *models.LinePatch, editorID uint) (*models.NoteLine, error) {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, *patch)
	line := &models.NoteLine{
		ID:             uint(1000 + len(f.updates)),
		NoteID:         noteID,
		LineNumber:     patch.LineNumber,
		Color:          models.DefaultLineColor,
		FontSize:       models.DefaultLineFontSize,
		LastEditedByID: &editorID,
	}
	if patch.Content != nil {
		line.Content = *patch.Content
	}
	if patch.Color != nil {
		line.Color = *patch.Color
	}
	if patch.FontSize != nil {
		line.FontSize = *patch.FontSize
	}
	if patch.Highlighted != nil {
		line.Highlighted = *patch.Highlighted
	}
	return line, nil
}

func (f *fakeNoteStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type historyRecorder struct {
	mu   sync.Mutex
	jobs []services.HistoryJob
}

func (h *historyRecorder) Record(job services.HistoryJob) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, job)
}

func (h *historyRecorder) all() []services.HistoryJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]services.HistoryJob, len(h.jobs))
	copy(out, h.jobs)
	return out
}

func newTestGateway(t *testing.T) (*NoteGateway, *fakeNoteStore, *historyRecorder, *Hub) {
	t.Helper()
	store := newFakeNoteStore()
	history := &historyRecorder{}
	hub := NewHub()
	hub.Start()
	return NewNoteGateway(store, history, hub), store, history, hub
}

// connectNote wires a session into the gateway and drains its two snapshot
// frames. The websocket connection stays nil; these tests exercise the
// coordinator, not the transport.
func connectNote(t *testing.T, g *NoteGateway, hub *Hub, noteID, userID uint, username, companyCode string) *Session {
	t.Helper()

	meta := models.NewSession(userID, username, companyCode)
	meta.NoteID = noteID
	meta.CompanyID = 1
	meta.RoomKey = NoteRoomKey(companyCode, noteID)

	session := newSession(meta, nil, hub, g)
	hub.Register(session)
	require.NoError(t, g.Connect(context.Background(), session))

	require.Equal(t, EventPresenceSnapshot, recvEvent(t, session).Type)
	require.Equal(t, EventLockSnapshot, recvEvent(t, session).Type)
	return session
}

func recvEvent(t *testing.T, s *Session) Envelope {
	t.Helper()
	select {
	case frame := <-s.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Envelope{}
	}
}

func decodeData(t *testing.T, env Envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func sendFrame(t *testing.T, g *NoteGateway, s *Session, eventType string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Type: eventType, Data: data})
	require.NoError(t, err)
	g.HandleMessage(s, frame)
}

func assertNoFrames(t *testing.T, s *Session) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.Send)
}

func TestConnectSendsSnapshotsAndAnnouncesJoin(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)

	// Bob's snapshots reflect the state he joined into.
	meta := models.NewSession(2, "bob", "acme")
	meta.NoteID = 1
	meta.CompanyID = 1
	meta.RoomKey = NoteRoomKey("acme", 1)
	bob := newSession(meta, nil, hub, g)
	hub.Register(bob)
	require.NoError(t, g.Connect(context.Background(), bob))

	env := recvEvent(t, bob)
	require.Equal(t, EventPresenceSnapshot, env.Type)
	var presence []models.PresenceEntry
	decodeData(t, env, &presence)
	require.Len(t, presence, 2)

	env = recvEvent(t, bob)
	require.Equal(t, EventLockSnapshot, env.Type)
	var locks []LockEvent
	decodeData(t, env, &locks)
	require.Len(t, locks, 1)
	assert.Equal(t, LockEvent{Username: "alice", NoteID: 1, LineNumber: 10}, locks[0])

	// Alice hears about the join; Bob does not hear about himself.
	env = recvEvent(t, alice)
	require.Equal(t, EventPresenceJoined, env.Type)
	var joined models.PresenceEntry
	decodeData(t, env, &joined)
	assert.Equal(t, "bob", joined.Username)
	assertNoFrames(t, bob)
}

func TestConnectRejectsWrongCompany(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	meta := models.NewSession(9, "mallory", "globex")
	meta.NoteID = 1
	meta.RoomKey = NoteRoomKey("globex", 1)
	mallory := newSession(meta, nil, hub, g)

	err := g.Connect(context.Background(), mallory)
	require.ErrorIs(t, err, ErrNoteAccessDenied)
	assert.Empty(t, g.PresenceFor(meta.RoomKey))
}

func TestAcquireLockBroadcastsToRoom(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})

	for _, s := range []*Session{alice, bob} {
		env := recvEvent(t, s)
		require.Equal(t, EventLockGranted, env.Type)
		var lock LockEvent
		decodeData(t, env, &lock)
		assert.Equal(t, LockEvent{Username: "alice", NoteID: 1, LineNumber: 10}, lock)
	}

	locks := g.LocksFor(1)
	require.Len(t, locks, 1)
	assert.Equal(t, "alice", locks[0].Username)
}

func TestAcquireContestedLineIsRejected(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	sendFrame(t, g, bob, EventAcquireLock, LockRequest{LineNumber: 10})

	// The rejection goes to Bob alone; Alice keeps the lock.
	env := recvEvent(t, bob)
	require.Equal(t, EventError, env.Type)
	var errEvent ErrorEvent
	decodeData(t, env, &errEvent)
	assert.Contains(t, errEvent.Message, "locked by alice")
	assert.Equal(t, 10, errEvent.LineNumber)

	assertNoFrames(t, alice)
	locks := g.LocksFor(1)
	require.Len(t, locks, 1)
	assert.Equal(t, "alice", locks[0].Username)
}

func TestAcquireElsewhereReleasesOldLockFirst(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 20})

	// Release of the old line precedes the new grant.
	env := recvEvent(t, bob)
	require.Equal(t, EventLockReleased, env.Type)
	var released LockEvent
	decodeData(t, env, &released)
	assert.Equal(t, LockEvent{Username: "alice", NoteID: 1, LineNumber: 10}, released)

	env = recvEvent(t, bob)
	require.Equal(t, EventLockGranted, env.Type)
	var granted LockEvent
	decodeData(t, env, &granted)
	assert.Equal(t, LockEvent{Username: "alice", NoteID: 1, LineNumber: 20}, granted)

	locks := g.LocksFor(1)
	require.Len(t, locks, 1)
	assert.Equal(t, 20, locks[0].LineNumber)
}

func TestReacquireSameLineIsNoop(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	assertNoFrames(t, alice)
}

func TestAcquireNearEndGrowsDocument(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 47})

	for _, s := range []*Session{alice, bob} {
		env := recvEvent(t, s)
		require.Equal(t, EventDocumentGrown, env.Type)
		var growth GrowthEvent
		decodeData(t, env, &growth)
		require.Len(t, growth.NewLines, GrowthBatchSize)
		assert.Equal(t, 51, growth.NewLines[0].LineNumber)
		assert.Equal(t, 55, growth.NewLines[4].LineNumber)

		require.Equal(t, EventLockGranted, recvEvent(t, s).Type)
	}

	// The cache follows growth: line 49 of 55 is below the threshold now.
	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 49})
	require.Equal(t, EventLockReleased, recvEvent(t, bob).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)
	assertNoFrames(t, bob)
}

func TestAcquireRejectsNonPositiveLine(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 0})

	require.Equal(t, EventError, recvEvent(t, alice).Type)
	assert.Empty(t, g.LocksFor(1))
}

func TestReleaseRequiresExactMatch(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	sendFrame(t, g, alice, EventReleaseLock, LockRequest{LineNumber: 11})
	assertNoFrames(t, bob)
	require.Len(t, g.LocksFor(1), 1)

	sendFrame(t, g, alice, EventReleaseLock, LockRequest{LineNumber: 10})
	env := recvEvent(t, bob)
	require.Equal(t, EventLockReleased, env.Type)
	assert.Empty(t, g.LocksFor(1))
}

func TestEditRequiresMatchingLock(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")

	content := "hello"
	sendFrame(t, g, alice, EventEditLine, models.LinePatch{LineNumber: 10, Content: &content})

	env := recvEvent(t, alice)
	require.Equal(t, EventError, env.Type)
	assert.Zero(t, store.updateCount(), "storage must not be touched")

	// Holding a lock on a different line does not help.
	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 5})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventEditLine, models.LinePatch{LineNumber: 10, Content: &content})
	require.Equal(t, EventError, recvEvent(t, alice).Type)
	assert.Zero(t, store.updateCount())
}

func TestEditBroadcastsAndRecordsHistory(t *testing.T) {
	g, store, history, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	content := "updated text"
	highlighted := true
	sendFrame(t, g, alice, EventEditLine, models.LinePatch{
		LineNumber:  10,
		Content:     &content,
		Highlighted: &highlighted,
	})

	for _, s := range []*Session{alice, bob} {
		env := recvEvent(t, s)
		require.Equal(t, EventLineUpdated, env.Type)
		var line models.NoteLine
		decodeData(t, env, &line)
		assert.Equal(t, 10, line.LineNumber)
		assert.Equal(t, "updated text", line.Content)
		assert.True(t, line.Highlighted)
	}

	jobs := history.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, models.OperationUpdate, jobs[0].Type)
	assert.Equal(t, models.TargetNoteLine, jobs[0].TargetType)
	assert.Equal(t, uint(1), jobs[0].PerformedBy)
}

func TestEditBroadcastsPersistedStateWhenLockMovesMidWrite(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	// The lock is torn down while the storage write is in flight. Storage
	// has already mutated by then, so the room must still see the line.
	store.beforeUpdate = func() {
		g.HandleDisconnect(alice)
	}

	content := "written anyway"
	sendFrame(t, g, alice, EventEditLine, models.LinePatch{LineNumber: 10, Content: &content})

	require.Equal(t, EventLockReleased, recvEvent(t, bob).Type)
	require.Equal(t, EventPresenceLeft, recvEvent(t, bob).Type)

	env := recvEvent(t, bob)
	require.Equal(t, EventLineUpdated, env.Type)
	var line models.NoteLine
	decodeData(t, env, &line)
	assert.Equal(t, "written anyway", line.Content)
	assert.Equal(t, 1, store.updateCount())
}

func TestEmptyEditIsRejected(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventEditLine, models.LinePatch{LineNumber: 10})
	env := recvEvent(t, alice)
	require.Equal(t, EventError, env.Type)
	assert.Zero(t, store.updateCount())
}

func TestDisconnectReleasesLockAndPresence(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, alice).Type)

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	g.HandleDisconnect(alice)

	env := recvEvent(t, bob)
	require.Equal(t, EventLockReleased, env.Type)
	var released LockEvent
	decodeData(t, env, &released)
	assert.Equal(t, LockEvent{Username: "alice", NoteID: 1, LineNumber: 10}, released)

	env = recvEvent(t, bob)
	require.Equal(t, EventPresenceLeft, env.Type)

	assert.Empty(t, g.LocksFor(1))
	presence := g.PresenceFor(NoteRoomKey("acme", 1))
	require.Len(t, presence, 1)
	assert.Equal(t, "bob", presence[0].Username)

	// Repeat disconnects are no-ops.
	g.HandleDisconnect(alice)
	assertNoFrames(t, bob)
}

func TestReconnectEvictsStaleSessionAndLock(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	first := connectNote(t, g, hub, 1, 1, "alice", "acme")
	bob := connectNote(t, g, hub, 1, 2, "bob", "acme")
	require.Equal(t, EventPresenceJoined, recvEvent(t, first).Type)

	sendFrame(t, g, first, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, first).Type)
	require.Equal(t, EventLockGranted, recvEvent(t, bob).Type)

	// Same user connects again (new tab); the old session is evicted and
	// its lock released before the new one is registered.
	meta := models.NewSession(1, "alice", "acme")
	meta.NoteID = 1
	meta.CompanyID = 1
	meta.RoomKey = NoteRoomKey("acme", 1)
	second := newSession(meta, nil, hub, g)
	hub.Register(second)
	require.NoError(t, g.Connect(context.Background(), second))

	// The new session gets its snapshots plus the eviction's release
	// broadcast; the broadcast may interleave with the direct sends.
	frames := map[string]Envelope{}
	for i := 0; i < 3; i++ {
		env := recvEvent(t, second)
		frames[env.Type] = env
	}
	require.Contains(t, frames, EventPresenceSnapshot)
	require.Contains(t, frames, EventLockSnapshot)
	require.Contains(t, frames, EventLockReleased)

	var snapshotLocks []LockEvent
	decodeData(t, frames[EventLockSnapshot], &snapshotLocks)
	assert.Empty(t, snapshotLocks, "fresh session must see no stale lock")

	env := recvEvent(t, bob)
	require.Equal(t, EventLockReleased, env.Type)
	var released LockEvent
	decodeData(t, env, &released)
	assert.Equal(t, LockEvent{Username: "alice", NoteID: 1, LineNumber: 10}, released)
	require.Equal(t, EventPresenceJoined, recvEvent(t, bob).Type)

	// The fresh session starts with no lock and presence lists alice once.
	assert.Empty(t, g.LocksFor(1))
	presence := g.PresenceFor(NoteRoomKey("acme", 1))
	require.Len(t, presence, 2)

	// The evicted session's read pump eventually runs the disconnect path;
	// it must not disturb the new session's state.
	g.HandleDisconnect(first)
	assertNoFrames(t, bob)
	require.Len(t, g.PresenceFor(NoteRoomKey("acme", 1)), 2)

	// The new session is fully live: it can take the lock back.
	sendFrame(t, g, second, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, second).Type)
}

func TestBroadcastsNeverCrossTenants(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)
	store.addNote(2, "globex", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")
	mallory := connectNote(t, g, hub, 2, 9, "mallory", "globex")

	sendFrame(t, g, alice, EventAcquireLock, LockRequest{LineNumber: 10})
	require.Equal(t, EventLockGranted, recvEvent(t, alice).Type)

	assertNoFrames(t, mallory)
	assert.Empty(t, g.LocksFor(2))
}

func TestMalformedFramesAreRejected(t *testing.T) {
	g, store, _, hub := newTestGateway(t)
	store.addNote(1, "acme", 50)

	alice := connectNote(t, g, hub, 1, 1, "alice", "acme")

	g.HandleMessage(alice, []byte("not json"))
	require.Equal(t, EventError, recvEvent(t, alice).Type)

	g.HandleMessage(alice, []byte(`{"type":"acquire-lock","data":"nope"}`))
	require.Equal(t, EventError, recvEvent(t, alice).Type)

	g.HandleMessage(alice, []byte(`{"type":"frobnicate"}`))
	env := recvEvent(t, alice)
	require.Equal(t, EventError, env.Type)
	var errEvent ErrorEvent
	decodeData(t, env, &errEvent)
	assert.Contains(t, errEvent.Message, "frobnicate")
}
