package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type InstanceType string

const (
	InstanceMisskey  InstanceType = "misskey"
	InstanceMastodon InstanceType = "mastodon"
)

type Account struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	InstanceType InstanceType `json:"instance_type"`
	InstanceURL  string       `json:"instance_url"`
	Token        string       `json:"token"`
	// Version is the server software version, e.g. "12.75.1". Empty means unknown.
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteID identifies a note across accounts and backends.
type NoteID struct {
	AccountID int64  `json:"account_id"`
	NoteID    string `json:"note_id"`
}

func (id NoteID) String() string {
	return fmt.Sprintf("%d:%s", id.AccountID, id.NoteID)
}

// key is the bbolt key; the account prefix keeps one account's notes contiguous.
func (id NoteID) key() []byte {
	return []byte(id.String())
}

func accountPrefix(accountID int64) []byte {
	return []byte(strconv.FormatInt(accountID, 10) + ":")
}

// ParseNoteID is the inverse of NoteID.String.
func ParseNoteID(s string) (NoteID, error) {
	acc, native, ok := strings.Cut(s, ":")
	if !ok || native == "" {
		return NoteID{}, fmt.Errorf("malformed note id %q", s)
	}
	accountID, err := strconv.ParseInt(acc, 10, 64)
	if err != nil {
		return NoteID{}, fmt.Errorf("malformed note id %q: %w", s, err)
	}
	return NoteID{AccountID: accountID, NoteID: native}, nil
}

type Note struct {
	ID          NoteID    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	CW          string    `json:"cw,omitempty"`
	URL         string    `json:"url,omitempty"`
	Visibility  string    `json:"visibility,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ReplyID     string    `json:"reply_id,omitempty"`
	RenoteID    string    `json:"renote_id,omitempty"`
	ChannelID   string    `json:"channel_id,omitempty"`
	FileURLs    []string  `json:"file_urls,omitempty"`
	// Source names the wire format the note was converted from.
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}
