package collaboration

import "collabdesk/internal/models"

// presenceRecord tracks one user's entry and how many of their sessions
// are in the room, so a second tab neither duplicates the roster entry nor
// removes it when the first tab leaves.
type presenceRecord struct {
	entry models.PresenceEntry
	count int
}

// Registry tracks which users are currently connected to each room. Like
// the lock table it is unsynchronized; the owning gateway serializes access.
type Registry struct {
	rooms map[string][]presenceRecord
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string][]presenceRecord)}
}

// Add registers one session for a user. Returns true if this made the user
// visible in the room; additional sessions bump a refcount and return false.
func (r *Registry) Add(roomKey string, entry models.PresenceEntry) bool {
	records := r.rooms[roomKey]
	for i := range records {
		if records[i].entry.Username == entry.Username {
			records[i].count++
			return false
		}
	}
	r.rooms[roomKey] = append(records, presenceRecord{entry: entry, count: 1})
	return true
}

// Remove drops one session for a user. Returns true when it was the user's
// last session and the roster entry was removed. Idempotent for unknown
// users.
func (r *Registry) Remove(roomKey, username string) bool {
	records := r.rooms[roomKey]
	for i := range records {
		if records[i].entry.Username != username {
			continue
		}

		records[i].count--
		if records[i].count > 0 {
			return false
		}

		r.rooms[roomKey] = append(records[:i], records[i+1:]...)
		if len(r.rooms[roomKey]) == 0 {
			delete(r.rooms, roomKey)
		}
		return true
	}
	return false
}

// List returns a copy of the room's presence entries.
func (r *Registry) List(roomKey string) []models.PresenceEntry {
	records := r.rooms[roomKey]
	out := make([]models.PresenceEntry, 0, len(records))
	for _, record := range records {
		out = append(out, record.entry)
	}
	return out
}
