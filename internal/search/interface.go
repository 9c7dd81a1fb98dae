package search

import (
	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/storage"
)

// Searcher defines the minimal search API used by the TUI and CLI.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
	SearchInNote(note *storage.Note, query string) ([]*Result, error)
}

// NoteLister is the read side of the note cache; *storage.Store satisfies it.
type NoteLister interface {
	GetAllAccounts() ([]*storage.Account, error)
	GetNotes(accountID int64, limit int) ([]*storage.Note, error)
	GetNote(id storage.NoteID) (*storage.Note, error)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}

// Open returns a bleve-backed searcher when indexPath is set and falls back
// to the scanning Engine otherwise or when the index cannot be opened.
func Open(store NoteLister, indexPath string) Searcher {
	if indexPath == "" {
		return NewEngine(store)
	}
	be, err := NewBleveEngine(store, indexPath)
	if err != nil {
		debuglog.Warnf("search index %s unavailable, using scan search: %v", indexPath, err)
		return NewEngine(store)
	}
	return be
}
