package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetAccount(t *testing.T) {
	store := setupTestStore(t)

	account := &Account{
		ID:           3,
		Name:         "alice",
		InstanceType: InstanceMisskey,
		InstanceURL:  "https://misskey.example",
		Token:        "secret",
		Version:      "12.75.1",
	}
	require.NoError(t, store.SaveAccount(account))

	got, err := store.GetAccount(3)
	require.NoError(t, err)
	assert.Equal(t, account.InstanceURL, got.InstanceURL)
	assert.Equal(t, InstanceMisskey, got.InstanceType)
	assert.Equal(t, "12.75.1", got.Version)
}

func TestStore_GetAccount_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetAccount(99)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestStore_GetAllAccounts_SortedByID(t *testing.T) {
	store := setupTestStore(t)

	for _, id := range []int64{10, 2, 7} {
		require.NoError(t, store.SaveAccount(&Account{ID: id}))
	}

	accounts, err := store.GetAllAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, []int64{2, 7, 10}, []int64{accounts[0].ID, accounts[1].ID, accounts[2].ID})
}

func TestStore_SaveAndGetNotes(t *testing.T) {
	store := setupTestStore(t)
	now := time.Now()

	notes := []*Note{
		{ID: NoteID{AccountID: 1, NoteID: "a"}, Text: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: NoteID{AccountID: 1, NoteID: "b"}, Text: "new", CreatedAt: now},
		{ID: NoteID{AccountID: 10, NoteID: "c"}, Text: "other account", CreatedAt: now},
	}
	require.NoError(t, store.SaveNotes(notes))

	got, err := store.GetNote(NoteID{AccountID: 1, NoteID: "b"})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text)

	list, err := store.GetNotes(1, 0)
	require.NoError(t, err)
	require.Len(t, list, 2, "account 10 must not leak into account 1")
	assert.Equal(t, "b", list[0].ID.NoteID)

	limited, err := store.GetNotes(1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_GetNote_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetNote(NoteID{AccountID: 1, NoteID: "missing"})
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestStore_DeleteAccount_RemovesNotes(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveAccount(&Account{ID: 1}))
	require.NoError(t, store.SaveAccount(&Account{ID: 2}))
	require.NoError(t, store.SaveNotes([]*Note{
		{ID: NoteID{AccountID: 1, NoteID: "x"}},
		{ID: NoteID{AccountID: 1, NoteID: "y"}},
		{ID: NoteID{AccountID: 2, NoteID: "z"}},
	}))

	require.NoError(t, store.DeleteAccount(1))

	_, err := store.GetAccount(1)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	remaining, err := store.GetNotes(1, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	other, err := store.GetNotes(2, 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStore_Meta(t *testing.T) {
	store := setupTestStore(t)

	v, err := store.GetMeta("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.SetMeta("k", []byte("v")))
	v, err = store.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestParseNoteID(t *testing.T) {
	id := NoteID{AccountID: 42, NoteID: "9abc:def"}
	parsed, err := ParseNoteID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "nocolon", "x:1", "1:"} {
		_, err := ParseNoteID(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
