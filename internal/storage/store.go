package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	accountsBucket = []byte("accounts")
	notesBucket    = []byte("notes")
	metaBucket     = []byte("metadata")
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoteNotFound    = errors.New("note not found")
)

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	return NewStoreWithTimeout(dbPath, 1*time.Second)
}

func NewStoreWithTimeout(dbPath string, timeout time.Duration) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{accountsBucket, notesBucket, metaBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func accountKey(id int64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

func (s *Store) SaveAccount(account *Account) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(account)
		if err != nil {
			return err
		}
		return tx.Bucket(accountsBucket).Put(accountKey(account.ID), data)
	})
}

func (s *Store) GetAccount(id int64) (*Account, error) {
	var account Account
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(accountsBucket).Get(accountKey(id))
		if data == nil {
			return ErrAccountNotFound
		}
		return json.Unmarshal(data, &account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAllAccounts returns accounts ordered by id.
func (s *Store) GetAllAccounts() ([]*Account, error) {
	var accounts []*Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(_ []byte, v []byte) error {
			var account Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			accounts = append(accounts, &account)
			return nil
		})
	})
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, err
}

// DeleteAccount removes the account and every note cached for it.
func (s *Store) DeleteAccount(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(accountsBucket).Delete(accountKey(id)); err != nil {
			return err
		}

		prefix := accountPrefix(id)
		c := tx.Bucket(notesBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveNotes(notes []*Note) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(notesBucket)
		for _, note := range notes {
			data, err := json.Marshal(note)
			if err != nil {
				return err
			}
			if err := b.Put(note.ID.key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetNote(id NoteID) (*Note, error) {
	var note Note
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(notesBucket).Get(id.key())
		if data == nil {
			return ErrNoteNotFound
		}
		return json.Unmarshal(data, &note)
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// GetNotes returns the cached notes of one account, newest first.
// A limit of zero or less returns all of them.
func (s *Store) GetNotes(accountID int64, limit int) ([]*Note, error) {
	var notes []*Note
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := accountPrefix(accountID)
		c := tx.Bucket(notesBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var note Note
			if err := json.Unmarshal(v, &note); err != nil {
				continue
			}
			notes = append(notes, &note)
		}
		return nil
	})
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, err
}

func (s *Store) SetMeta(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), value)
	})
}

// GetMeta returns nil without error when the key is absent.
func (s *Store) GetMeta(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}
