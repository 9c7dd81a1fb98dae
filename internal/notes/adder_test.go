package notes

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/fwtl/internal/api/mastodon"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/feed"
	"github.com/pders01/fwtl/internal/storage"
)

func ptr(s string) *string { return &s }

func TestAddMisskey_OneIDPerInputInOrder(t *testing.T) {
	ds := storage.NewNoteDataSource(nil)
	adder := NewAdder(ds)

	renoted := misskey.Note{ID: "r1", UserID: "u2", User: misskey.User{ID: "u2", Username: "carol", Host: ptr("else.where")}, Text: ptr("original")}
	in := []misskey.Note{
		{ID: "n2", UserID: "u1", User: misskey.User{ID: "u1", Username: "alice", Name: ptr("Alice")}, Text: ptr("second"), CreatedAt: time.Unix(2, 0)},
		{ID: "n1", UserID: "u1", User: misskey.User{ID: "u1", Username: "alice"}, RenoteID: ptr("r1"), Renote: &renoted},
	}

	ids, err := adder.AddMisskey(7, in)
	require.NoError(t, err)
	assert.Equal(t, []storage.NoteID{{AccountID: 7, NoteID: "n2"}, {AccountID: 7, NoteID: "n1"}}, ids)
	assert.Equal(t, 3, ds.Len(), "embedded renote is registered too")

	n, err := ds.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Alice", n.DisplayName)
	assert.Equal(t, "second", n.Text)
	assert.Equal(t, SourceMisskey, n.Source)

	r, err := ds.Get(storage.NoteID{AccountID: 7, NoteID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "carol@else.where", r.Username)
	assert.Equal(t, "carol", r.DisplayName)
}

func TestAddMisskey_Upsert(t *testing.T) {
	ds := storage.NewNoteDataSource(nil)
	adder := NewAdder(ds)

	_, err := adder.AddMisskey(1, []misskey.Note{{ID: "a", Text: ptr("v1")}})
	require.NoError(t, err)
	_, err = adder.AddMisskey(1, []misskey.Note{{ID: "a", Text: ptr("v2")}})
	require.NoError(t, err)

	assert.Equal(t, 1, ds.Len())
	n, err := ds.Get(storage.NoteID{AccountID: 1, NoteID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "v2", n.Text)
}

func TestAddMastodon(t *testing.T) {
	ds := storage.NewNoteDataSource(nil)
	adder := NewAdder(ds)

	in := []mastodon.Status{
		{
			ID:      "200",
			URI:     "https://m.example/users/bob/statuses/200",
			Content: "<p>hello <b>world</b></p>",
			Account: mastodon.Account{ID: "b", Username: "bob", Acct: "bob"},
			MediaAttachments: []mastodon.MediaAttachment{
				{URL: "https://m.example/media/1.png"},
			},
		},
		{
			ID:      "199",
			Account: mastodon.Account{ID: "b", Username: "bob", Acct: "bob"},
			Reblog: &mastodon.Status{
				ID:      "50",
				Content: "<p>boosted</p>",
				Account: mastodon.Account{ID: "c", Username: "carol", Acct: "carol@else.where", DisplayName: "Carol"},
			},
		},
	}

	ids, err := adder.AddMastodon(3, in)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "200", ids[0].NoteID)
	assert.Equal(t, "199", ids[1].NoteID)
	assert.Equal(t, 3, ds.Len())

	n, err := ds.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", n.Text)
	assert.Equal(t, "bob", n.DisplayName)
	assert.Equal(t, []string{"https://m.example/media/1.png"}, n.FileURLs)

	boost, err := ds.Get(ids[1])
	require.NoError(t, err)
	assert.Equal(t, "50", boost.RenoteID)
}

func TestAddFeedItems(t *testing.T) {
	ds := storage.NewNoteDataSource(nil)
	adder := NewAdder(ds)

	ids, err := adder.AddFeedItems(9, []*feed.Item{
		{ID: "https://blog.example/p/1", Title: "Hello", Content: "<p>body</p>", Link: "https://blog.example/p/1", Author: "dana"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	n, err := ds.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n\n<p>body</p>", n.Text)
	assert.Equal(t, SourceFeed, n.Source)
	assert.Equal(t, "https://blog.example/p/1", n.URL)
}

func TestAdder_ConcurrentDisjointBatches(t *testing.T) {
	ds := storage.NewNoteDataSource(nil)
	adder := NewAdder(ds)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			batch := make([]misskey.Note, 20)
			for i := range batch {
				batch[i] = misskey.Note{ID: string(rune('a'+g)) + "-" + string(rune('A'+i))}
			}
			ids, err := adder.AddMisskey(1, batch)
			assert.NoError(t, err)
			assert.Len(t, ids, 20)
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 160, ds.Len())
}
