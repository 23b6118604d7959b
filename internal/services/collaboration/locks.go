package collaboration

// LockOwner identifies a lock holder. Usernames are only unique within a
// company, so the company code is part of the key.
type LockOwner struct {
	CompanyCode string
	Username    string
}

// LockRef is the line an owner currently holds.
type LockRef struct {
	NoteID     uint
	LineNumber int
}

// LockTable is the in-memory soft-lock relation. Two indexes are kept in
// step: note → owner → line for per-room snapshots, and owner → (note, line)
// so reconciling a reconnecting user is O(1) instead of a scan.
//
// The table is not synchronized; the note gateway serializes all access
// under its own mutex.
type LockTable struct {
	byNote map[uint]map[LockOwner]int
	byUser map[LockOwner]LockRef
}

func NewLockTable() *LockTable {
	return &LockTable{
		byNote: make(map[uint]map[LockOwner]int),
		byUser: make(map[LockOwner]LockRef),
	}
}

// Lookup returns the owner's current lock, if any.
func (t *LockTable) Lookup(owner LockOwner) (LockRef, bool) {
	ref, ok := t.byUser[owner]
	return ref, ok
}

// HolderOf returns the owner holding a given line, if any.
func (t *LockTable) HolderOf(noteID uint, lineNumber int) (LockOwner, bool) {
	for owner, line := range t.byNote[noteID] {
		if line == lineNumber {
			return owner, true
		}
	}
	return LockOwner{}, false
}

// Set records a lock for the owner, displacing any lock the same owner held
// before. Returns the displaced lock, if there was one. Per-line exclusivity
// against other owners is the caller's policy to enforce.
func (t *LockTable) Set(owner LockOwner, noteID uint, lineNumber int) (previous LockRef, displaced bool) {
	previous, displaced = t.byUser[owner]
	if displaced {
		t.removeFromNote(previous.NoteID, owner)
	}

	if t.byNote[noteID] == nil {
		t.byNote[noteID] = make(map[LockOwner]int)
	}
	t.byNote[noteID][owner] = lineNumber
	t.byUser[owner] = LockRef{NoteID: noteID, LineNumber: lineNumber}

	return previous, displaced
}

// Release removes the owner's lock only if it matches (noteID, lineNumber)
// exactly. Reports whether a lock was removed.
func (t *LockTable) Release(owner LockOwner, noteID uint, lineNumber int) bool {
	ref, ok := t.byUser[owner]
	if !ok || ref.NoteID != noteID || ref.LineNumber != lineNumber {
		return false
	}
	t.removeFromNote(noteID, owner)
	delete(t.byUser, owner)
	return true
}

// ReleaseOwner removes whatever lock the owner holds, anywhere. Returns the
// removed lock, if there was one.
func (t *LockTable) ReleaseOwner(owner LockOwner) (LockRef, bool) {
	ref, ok := t.byUser[owner]
	if !ok {
		return LockRef{}, false
	}
	t.removeFromNote(ref.NoteID, owner)
	delete(t.byUser, owner)
	return ref, true
}

// Snapshot returns all current locks for a note, for the lock snapshot sent
// to newly connected clients.
func (t *LockTable) Snapshot(noteID uint) []LockEvent {
	owners := t.byNote[noteID]
	locks := make([]LockEvent, 0, len(owners))
	for owner, line := range owners {
		locks = append(locks, LockEvent{
			Username:   owner.Username,
			NoteID:     noteID,
			LineNumber: line,
		})
	}
	return locks
}

// Len returns the total number of held locks.
func (t *LockTable) Len() int {
	return len(t.byUser)
}

func (t *LockTable) removeFromNote(noteID uint, owner LockOwner) {
	owners := t.byNote[noteID]
	delete(owners, owner)
	if len(owners) == 0 {
		delete(t.byNote, noteID)
	}
}
