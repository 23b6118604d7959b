package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"collabdesk/internal/models"
	"collabdesk/internal/services"
)

var ErrNoteAccessDenied = errors.New("note access denied")

// NoteGateway coordinates concurrent editing of a note: presence, soft
// locks, edit gating and document growth. All coordinator state (lock
// table, presence registry, line-count cache, session index) is guarded by
// one mutex so every handler observes and mutates it atomically. Storage
// I/O happens outside the critical section; invariants are re-checked after
// every awaited storage call.
//
// The state is process-local. Scaling out requires externalizing the lock
// and presence tables.
type NoteGateway struct {
	store   NoteStore
	history HistorySink
	hub     *Hub
	grower  *Grower

	mu         sync.Mutex
	locks      *LockTable
	presence   *Registry
	lineCounts map[uint]int
	sessions   map[LockOwner]*Session
}

func NewNoteGateway(store NoteStore, history HistorySink, hub *Hub) *NoteGateway {
	return &NoteGateway{
		store:      store,
		history:    history,
		hub:        hub,
		grower:     NewGrower(store),
		locks:      NewLockTable(),
		presence:   NewRegistry(),
		lineCounts: make(map[uint]int),
		sessions:   make(map[LockOwner]*Session),
	}
}

// Connect validates tenant access, reconciles any stale session for the
// same user, registers presence and sends the new client its presence and
// lock snapshots. An error means the caller must close the connection; no
// partial registry state is left behind.
func (g *NoteGateway) Connect(ctx context.Context, session *Session) error {
	ok, err := g.store.HasAccess(ctx, session.NoteID, session.CompanyCode)
	if err != nil {
		return fmt.Errorf("failed to validate note access: %w", err)
	}
	if !ok {
		return ErrNoteAccessDenied
	}

	// Warm the line-count cache before touching coordinator state, so the
	// lock path rarely needs a storage round-trip.
	if err := g.ensureLineCount(ctx, session.NoteID); err != nil {
		return err
	}

	owner := ownerOf(session)

	g.mu.Lock()
	// A user reconnecting (new tab, dropped socket the server has not
	// noticed yet) evicts their previous session wherever it was, releasing
	// any lock it held.
	if stale, exists := g.sessions[owner]; exists && stale != session {
		g.evictLocked(stale, owner)
	}

	g.sessions[owner] = session
	g.presence.Add(session.RoomKey, models.PresenceEntry{
		UserID:      session.UserID,
		Username:    session.Username,
		CompanyCode: session.CompanyCode,
	})

	presenceSnapshot := g.presence.List(session.RoomKey)
	lockSnapshot := g.locks.Snapshot(session.NoteID)
	g.mu.Unlock()

	session.queueSend(encodeEvent(EventPresenceSnapshot, presenceSnapshot))
	session.queueSend(encodeEvent(EventLockSnapshot, lockSnapshot))

	g.hub.BroadcastExcept(session.RoomKey, encodeEvent(EventPresenceJoined, models.PresenceEntry{
		UserID:      session.UserID,
		Username:    session.Username,
		CompanyCode: session.CompanyCode,
	}), session)

	log.Printf("✓ %s connected to note %d", session.Username, session.NoteID)
	return nil
}

// HandleDisconnect removes the session's presence entry and releases its
// lock, broadcasting the release. Idempotent: a session already evicted by
// a reconnect is a no-op.
func (g *NoteGateway) HandleDisconnect(session *Session) {
	owner := ownerOf(session)

	g.mu.Lock()
	current, exists := g.sessions[owner]
	if !exists || current != session {
		g.mu.Unlock()
		return
	}
	delete(g.sessions, owner)

	g.presence.Remove(session.RoomKey, session.Username)

	released, hadLock := g.locks.ReleaseOwner(owner)
	g.mu.Unlock()

	if hadLock {
		g.broadcastRelease(owner, released)
	}
	g.hub.BroadcastExcept(session.RoomKey, encodeEvent(EventPresenceLeft, models.PresenceEntry{
		UserID:      session.UserID,
		Username:    session.Username,
		CompanyCode: session.CompanyCode,
	}), session)

	log.Printf("Disconnected: %s - lock removed: %v", session.Username, hadLock)
}

// HandleMessage dispatches one inbound frame.
func (g *NoteGateway) HandleMessage(session *Session, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		session.sendError("malformed message", session.NoteID, 0)
		return
	}

	switch envelope.Type {
	case EventAcquireLock:
		var req LockRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			session.sendError("malformed acquire-lock payload", session.NoteID, 0)
			return
		}
		g.handleAcquire(session, req.LineNumber)

	case EventReleaseLock:
		var req LockRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			session.sendError("malformed release-lock payload", session.NoteID, 0)
			return
		}
		g.handleRelease(session, req.LineNumber)

	case EventEditLine:
		var patch models.LinePatch
		if err := json.Unmarshal(envelope.Data, &patch); err != nil {
			session.sendError("malformed edit-line payload", session.NoteID, 0)
			return
		}
		g.handleEdit(session, &patch)

	default:
		session.sendError(fmt.Sprintf("unknown event type %q", envelope.Type), session.NoteID, 0)
	}
}

// handleAcquire grants a soft lock on a line. Growth runs before lock
// bookkeeping so the lock is validated against the post-growth document.
// A line already held by another user is rejected outright; acquiring
// while holding a lock elsewhere releases the old lock first.
func (g *NoteGateway) handleAcquire(session *Session, lineNumber int) {
	ctx := context.Background()
	noteID := session.NoteID
	owner := ownerOf(session)

	if lineNumber < 1 {
		session.sendError("line number must be positive", noteID, lineNumber)
		return
	}

	g.mu.Lock()
	lineCount, cached := g.lineCounts[noteID]
	g.mu.Unlock()

	if !cached {
		if err := g.ensureLineCount(ctx, noteID); err != nil {
			session.sendError("failed to resolve document length", noteID, lineNumber)
			return
		}
		g.mu.Lock()
		lineCount = g.lineCounts[noteID]
		g.mu.Unlock()
	}

	// Extend the note if the requested line is within the last few lines.
	if g.grower.ShouldGrow(lineNumber, lineCount) {
		newLines, err := g.grower.Grow(ctx, noteID)
		if err != nil {
			log.Printf("⚠️  Failed to grow note %d: %v", noteID, err)
			session.sendError("failed to extend document", noteID, lineNumber)
			return
		}

		g.mu.Lock()
		// Another acquire may have grown the note while we were waiting on
		// storage; trust the highest line number actually persisted.
		newCount := newLines[len(newLines)-1].LineNumber
		if newCount > g.lineCounts[noteID] {
			g.lineCounts[noteID] = newCount
		}
		g.mu.Unlock()

		g.hub.Broadcast(session.RoomKey, encodeEvent(EventDocumentGrown, GrowthEvent{
			NoteID:   noteID,
			NewLines: newLines,
		}))
	}

	g.mu.Lock()
	// Idempotent re-acquire of the same line.
	if ref, ok := g.locks.Lookup(owner); ok && ref.NoteID == noteID && ref.LineNumber == lineNumber {
		g.mu.Unlock()
		return
	}

	// The line is someone else's. Reject instead of silently displacing
	// them; the client may retry or surface the conflict.
	if holder, held := g.locks.HolderOf(noteID, lineNumber); held && holder != owner {
		g.mu.Unlock()
		session.sendError(
			fmt.Sprintf("line %d is locked by %s", lineNumber, holder.Username),
			noteID, lineNumber,
		)
		return
	}

	previous, displaced := g.locks.Set(owner, noteID, lineNumber)
	g.mu.Unlock()

	// One lock per user globally: taking a new lock releases the old one,
	// wherever it was.
	if displaced {
		g.broadcastRelease(owner, previous)
	}

	g.hub.Broadcast(session.RoomKey, encodeEvent(EventLockGranted, LockEvent{
		Username:   owner.Username,
		NoteID:     noteID,
		LineNumber: lineNumber,
	}))
}

// handleRelease removes the caller's lock if it matches exactly; anything
// else is a silent no-op.
func (g *NoteGateway) handleRelease(session *Session, lineNumber int) {
	owner := ownerOf(session)

	g.mu.Lock()
	released := g.locks.Release(owner, session.NoteID, lineNumber)
	g.mu.Unlock()

	if released {
		g.broadcastRelease(owner, LockRef{NoteID: session.NoteID, LineNumber: lineNumber})
	}
}

// handleEdit applies a partial line update. The caller's current lock must
// match the target line exactly; rejection goes to the requester only and
// never mutates storage.
func (g *NoteGateway) handleEdit(session *Session, patch *models.LinePatch) {
	ctx := context.Background()
	noteID := session.NoteID
	owner := ownerOf(session)

	g.mu.Lock()
	ref, ok := g.locks.Lookup(owner)
	g.mu.Unlock()

	if !ok || ref.NoteID != noteID || ref.LineNumber != patch.LineNumber {
		log.Printf("⚠️  %s attempted to edit line %d of note %d without holding the lock",
			session.Username, patch.LineNumber, noteID)
		session.sendError("you must hold the soft lock on this line to alter it", noteID, patch.LineNumber)
		return
	}

	if patch.IsEmpty() {
		session.sendError("edit carries no fields", noteID, patch.LineNumber)
		return
	}

	line, err := g.store.UpdateLine(ctx, noteID, patch, session.UserID)
	if err != nil {
		log.Printf("⚠️  Failed to update line %d of note %d: %v", patch.LineNumber, noteID, err)
		session.sendError("failed to update line", noteID, patch.LineNumber)
		return
	}

	// The storage write suspended us; make sure the lock did not move
	// underneath (eviction by a reconnect is the one way that can happen).
	g.mu.Lock()
	current, stillHeld := g.locks.Lookup(owner)
	g.mu.Unlock()
	if !stillHeld || current != ref {
		log.Printf("⚠️  Lock for %s moved during edit of note %d line %d", session.Username, noteID, patch.LineNumber)
	}

	g.hub.Broadcast(session.RoomKey, encodeEvent(EventLineUpdated, line))

	g.history.Record(services.HistoryJob{
		Type:        models.OperationUpdate,
		TargetType:  models.TargetNoteLine,
		TargetID:    line.ID,
		Data:        line,
		PerformedBy: session.UserID,
		CompanyID:   session.CompanyID,
	})
}

// ensureLineCount lazily fills the line-count cache from storage. Safe to
// race: the first writer wins, later growth keeps the cache in sync.
func (g *NoteGateway) ensureLineCount(ctx context.Context, noteID uint) error {
	g.mu.Lock()
	_, cached := g.lineCounts[noteID]
	g.mu.Unlock()
	if cached {
		return nil
	}

	count, err := g.store.LineCount(ctx, noteID)
	if err != nil {
		return fmt.Errorf("failed to get line count: %w", err)
	}

	g.mu.Lock()
	if _, cached := g.lineCounts[noteID]; !cached {
		g.lineCounts[noteID] = count
	}
	g.mu.Unlock()
	return nil
}

// evictLocked tears down a stale session during reconnect reconciliation.
// Caller holds g.mu.
func (g *NoteGateway) evictLocked(stale *Session, owner LockOwner) {
	delete(g.sessions, owner)
	g.presence.Remove(stale.RoomKey, stale.Username)

	if released, hadLock := g.locks.ReleaseOwner(owner); hadLock {
		// Hub broadcasts only queue onto a channel, so no unlock needed.
		g.hub.Broadcast(
			NoteRoomKey(owner.CompanyCode, released.NoteID),
			encodeEvent(EventLockReleased, LockEvent{
				Username:   owner.Username,
				NoteID:     released.NoteID,
				LineNumber: released.LineNumber,
			}),
		)
	}

	// Closing the connection makes the stale session's read pump run the
	// normal disconnect path, which will see it is no longer current.
	stale.closeConn()

	log.Printf("Evicted previous session for %s - lock removed", owner.Username)
}

func (g *NoteGateway) broadcastRelease(owner LockOwner, ref LockRef) {
	g.hub.Broadcast(
		NoteRoomKey(owner.CompanyCode, ref.NoteID),
		encodeEvent(EventLockReleased, LockEvent{
			Username:   owner.Username,
			NoteID:     ref.NoteID,
			LineNumber: ref.LineNumber,
		}),
	)
}

// LocksFor returns the current lock snapshot for a note.
func (g *NoteGateway) LocksFor(noteID uint) []LockEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locks.Snapshot(noteID)
}

// PresenceFor returns the current presence list for a room.
func (g *NoteGateway) PresenceFor(roomKey string) []models.PresenceEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.presence.List(roomKey)
}

func ownerOf(session *Session) LockOwner {
	return LockOwner{CompanyCode: session.CompanyCode, Username: session.Username}
}
