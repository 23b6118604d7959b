package collaboration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTableSetAndLookup(t *testing.T) {
	table := NewLockTable()
	alice := LockOwner{CompanyCode: "acme", Username: "alice"}

	_, displaced := table.Set(alice, 1, 10)
	assert.False(t, displaced)

	ref, ok := table.Lookup(alice)
	require.True(t, ok)
	assert.Equal(t, LockRef{NoteID: 1, LineNumber: 10}, ref)

	holder, held := table.HolderOf(1, 10)
	require.True(t, held)
	assert.Equal(t, alice, holder)
}

func TestLockTableOneLockPerOwner(t *testing.T) {
	table := NewLockTable()
	alice := LockOwner{CompanyCode: "acme", Username: "alice"}

	table.Set(alice, 1, 10)
	previous, displaced := table.Set(alice, 2, 3)

	require.True(t, displaced)
	assert.Equal(t, LockRef{NoteID: 1, LineNumber: 10}, previous)

	// The old lock is gone, only the new one remains.
	_, held := table.HolderOf(1, 10)
	assert.False(t, held)
	ref, ok := table.Lookup(alice)
	require.True(t, ok)
	assert.Equal(t, LockRef{NoteID: 2, LineNumber: 3}, ref)
	assert.Equal(t, 1, table.Len())
}

func TestLockTableReleaseRequiresExactMatch(t *testing.T) {
	table := NewLockTable()
	alice := LockOwner{CompanyCode: "acme", Username: "alice"}
	table.Set(alice, 1, 10)

	assert.False(t, table.Release(alice, 1, 11), "wrong line")
	assert.False(t, table.Release(alice, 2, 10), "wrong note")
	_, ok := table.Lookup(alice)
	assert.True(t, ok)

	assert.True(t, table.Release(alice, 1, 10))
	_, ok = table.Lookup(alice)
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestLockTableReleaseOwner(t *testing.T) {
	table := NewLockTable()
	alice := LockOwner{CompanyCode: "acme", Username: "alice"}

	_, had := table.ReleaseOwner(alice)
	assert.False(t, had)

	table.Set(alice, 7, 2)
	ref, had := table.ReleaseOwner(alice)
	require.True(t, had)
	assert.Equal(t, LockRef{NoteID: 7, LineNumber: 2}, ref)
	assert.Equal(t, 0, table.Len())
}

func TestLockTableSameUsernameDifferentCompanies(t *testing.T) {
	table := NewLockTable()
	acmeAlice := LockOwner{CompanyCode: "acme", Username: "alice"}
	globexAlice := LockOwner{CompanyCode: "globex", Username: "alice"}

	table.Set(acmeAlice, 1, 5)
	table.Set(globexAlice, 2, 8)

	// Distinct owners, so neither displaced the other.
	assert.Equal(t, 2, table.Len())
	ref, _ := table.Lookup(acmeAlice)
	assert.Equal(t, LockRef{NoteID: 1, LineNumber: 5}, ref)
	ref, _ = table.Lookup(globexAlice)
	assert.Equal(t, LockRef{NoteID: 2, LineNumber: 8}, ref)
}

func TestLockTableSnapshot(t *testing.T) {
	table := NewLockTable()
	table.Set(LockOwner{CompanyCode: "acme", Username: "alice"}, 1, 5)
	table.Set(LockOwner{CompanyCode: "acme", Username: "bob"}, 1, 9)
	table.Set(LockOwner{CompanyCode: "acme", Username: "carol"}, 2, 1)

	snapshot := table.Snapshot(1)
	require.Len(t, snapshot, 2)
	assert.ElementsMatch(t, []LockEvent{
		{Username: "alice", NoteID: 1, LineNumber: 5},
		{Username: "bob", NoteID: 1, LineNumber: 9},
	}, snapshot)

	assert.Empty(t, table.Snapshot(99))
}
