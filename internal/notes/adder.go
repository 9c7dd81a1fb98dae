// Package notes converts backend wire objects into storage.Note values and
// registers them in the shared NoteDataSource.
package notes

import (
	"fmt"

	"github.com/pders01/fwtl/internal/api/mastodon"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/feed"
	"github.com/pders01/fwtl/internal/storage"
)

const (
	SourceMisskey  = "misskey"
	SourceMastodon = "mastodon"
	SourceFeed     = "feed"
)

// Adder is safe for concurrent use on disjoint inputs; the data source
// serializes the actual upserts.
type Adder struct {
	notes *storage.NoteDataSource
}

func NewAdder(notes *storage.NoteDataSource) *Adder {
	return &Adder{notes: notes}
}

func (a *Adder) DataSource() *storage.NoteDataSource {
	return a.notes
}

// AddMisskey registers notes (and any embedded renotes) and returns one id
// per input, in input order.
func (a *Adder) AddMisskey(accountID int64, in []misskey.Note) ([]storage.NoteID, error) {
	ids := make([]storage.NoteID, len(in))
	batch := make([]*storage.Note, 0, len(in))
	for i := range in {
		if in[i].Renote != nil {
			batch = append(batch, FromMisskey(accountID, in[i].Renote))
		}
		n := FromMisskey(accountID, &in[i])
		batch = append(batch, n)
		ids[i] = n.ID
	}
	if _, err := a.notes.AddAll(batch); err != nil {
		return nil, fmt.Errorf("adding misskey notes: %w", err)
	}
	return ids, nil
}

// AddMastodon registers statuses (and reblogged originals) and returns one
// id per input, in input order.
func (a *Adder) AddMastodon(accountID int64, in []mastodon.Status) ([]storage.NoteID, error) {
	ids := make([]storage.NoteID, len(in))
	batch := make([]*storage.Note, 0, len(in))
	for i := range in {
		if in[i].Reblog != nil {
			batch = append(batch, FromMastodon(accountID, in[i].Reblog))
		}
		n := FromMastodon(accountID, &in[i])
		batch = append(batch, n)
		ids[i] = n.ID
	}
	if _, err := a.notes.AddAll(batch); err != nil {
		return nil, fmt.Errorf("adding mastodon statuses: %w", err)
	}
	return ids, nil
}

// AddFeedItems registers feed entries under accountID.
func (a *Adder) AddFeedItems(accountID int64, in []*feed.Item) ([]storage.NoteID, error) {
	ids := make([]storage.NoteID, len(in))
	batch := make([]*storage.Note, len(in))
	for i, item := range in {
		batch[i] = FromFeedItem(accountID, item)
		ids[i] = batch[i].ID
	}
	if _, err := a.notes.AddAll(batch); err != nil {
		return nil, fmt.Errorf("adding feed items: %w", err)
	}
	return ids, nil
}

func FromMisskey(accountID int64, n *misskey.Note) *storage.Note {
	note := &storage.Note{
		ID:         storage.NoteID{AccountID: accountID, NoteID: n.ID},
		UserID:     n.UserID,
		Username:   n.User.Username,
		Text:       deref(n.Text),
		CW:         deref(n.CW),
		Visibility: n.Visibility,
		CreatedAt:  n.CreatedAt,
		ReplyID:    deref(n.ReplyID),
		RenoteID:   deref(n.RenoteID),
		ChannelID:  deref(n.ChannelID),
		Source:     SourceMisskey,
	}
	if n.User.Host != nil && *n.User.Host != "" {
		note.Username += "@" + *n.User.Host
	}
	note.DisplayName = deref(n.User.Name)
	if note.DisplayName == "" {
		note.DisplayName = n.User.Username
	}
	if n.URL != nil {
		note.URL = *n.URL
	} else if n.URI != nil {
		note.URL = *n.URI
	}
	for _, f := range n.Files {
		if f.URL != "" {
			note.FileURLs = append(note.FileURLs, f.URL)
		}
	}
	return note
}

func FromMastodon(accountID int64, s *mastodon.Status) *storage.Note {
	note := &storage.Note{
		ID:          storage.NoteID{AccountID: accountID, NoteID: s.ID},
		UserID:      s.Account.ID,
		Username:    s.Account.Acct,
		DisplayName: s.Account.DisplayName,
		Text:        mastodon.PlainText(s.Content),
		CW:          s.SpoilerText,
		URL:         s.URI,
		Visibility:  s.Visibility,
		CreatedAt:   s.CreatedAt,
		ReplyID:     deref(s.InReplyToID),
		Source:      SourceMastodon,
	}
	if note.DisplayName == "" {
		note.DisplayName = s.Account.Username
	}
	if s.URL != nil && *s.URL != "" {
		note.URL = *s.URL
	}
	if s.Reblog != nil {
		note.RenoteID = s.Reblog.ID
	}
	for _, m := range s.MediaAttachments {
		if m.URL != "" {
			note.FileURLs = append(note.FileURLs, m.URL)
		}
	}
	return note
}

func FromFeedItem(accountID int64, item *feed.Item) *storage.Note {
	text := item.Content
	if item.Title != "" {
		text = "# " + item.Title + "\n\n" + text
	}
	return &storage.Note{
		ID:          storage.NoteID{AccountID: accountID, NoteID: item.ID},
		Username:    item.Author,
		DisplayName: item.Author,
		Text:        text,
		URL:         item.Link,
		Visibility:  "public",
		CreatedAt:   item.Published,
		FileURLs:    item.MediaURLs,
		Source:      SourceFeed,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
