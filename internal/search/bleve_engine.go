package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/storage"
)

// BleveEngine keeps a full-text index of cached notes. It is a
// storage.NoteListener, so registering it on the NoteDataSource keeps the
// index current as timelines load and streams deliver notes.
type BleveEngine struct {
	store NoteLister
	idx   bleve.Index
}

// NewBleveEngine creates or opens a Bleve index at indexPath and indexes
// the notes already cached in store.
func NewBleveEngine(store NoteLister, indexPath string) (*BleveEngine, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating search index: %w", err)
		}
	}

	be := &BleveEngine{store: store, idx: idx}
	if err := be.reindexAll(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return be, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.IncludeTermVectors = true

	cw := bleve.NewTextFieldMapping()
	cw.Analyzer = standard.Name
	cw.Store = true

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name
	author.Store = true

	// account_id is matched exactly when an account is removed
	accountID := bleve.NewTextFieldMapping()
	accountID.Analyzer = keyword.Name
	accountID.Store = true

	created := bleve.NewDateTimeFieldMapping()
	created.Store = true

	dm.AddFieldMappingsAt("text", text)
	dm.AddFieldMappingsAt("cw", cw)
	dm.AddFieldMappingsAt("author", author)
	dm.AddFieldMappingsAt("account_id", accountID)
	dm.AddFieldMappingsAt("created_at", created)

	im.DefaultMapping = dm
	return im
}

func noteDocument(n *storage.Note) map[string]any {
	return map[string]any{
		"text":       n.Text,
		"cw":         n.CW,
		"author":     strings.TrimSpace(n.DisplayName + " " + n.Username),
		"account_id": strconv.FormatInt(n.ID.AccountID, 10),
		"created_at": n.CreatedAt,
	}
}

func (b *BleveEngine) reindexAll() error {
	accounts, err := b.store.GetAllAccounts()
	if err != nil {
		return err
	}

	batch := b.idx.NewBatch()
	for _, account := range accounts {
		notes, err := b.store.GetNotes(account.ID, 0)
		if err != nil {
			continue
		}
		for _, n := range notes {
			_ = batch.Index(n.ID.String(), noteDocument(n))
		}
	}
	return b.idx.Batch(batch)
}

func (b *BleveEngine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	// OR of per-term matches and prefixes across fields, weighted like the
	// scan engine.
	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		for _, f := range []struct {
			field string
			boost float64
		}{
			{"text", 2.0},
			{"cw", 1.5},
			{"author", 1.0},
		} {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(f.field)
			mq.SetBoost(f.boost)
			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(f.field)
			pq.SetBoost(f.boost * 0.8)
			qs = append(qs, mq, pq)
		}
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	req.Fields = []string{"text", "cw", "author"}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := storage.ParseNoteID(h.ID)
		if err != nil {
			continue
		}
		note, err := b.store.GetNote(id)
		if err != nil {
			// Indexed but evicted from the cache: rebuild what was stored.
			note = &storage.Note{ID: id}
			if t, ok := h.Fields["text"].(string); ok {
				note.Text = t
			}
			if cw, ok := h.Fields["cw"].(string); ok {
				note.CW = cw
			}
			if a, ok := h.Fields["author"].(string); ok {
				note.DisplayName = a
			}
		}
		out = append(out, &Result{Note: note, Score: h.Score})
	}
	return out, nil
}

// SearchInNote scores a single note locally; the index is not consulted.
func (b *BleveEngine) SearchInNote(note *storage.Note, query string) ([]*Result, error) {
	return NewEngine(b.store).SearchInNote(note, query)
}

// OnNotesAdded indexes notes as they enter the cache.
func (b *BleveEngine) OnNotesAdded(notes []*storage.Note) {
	batch := b.idx.NewBatch()
	for _, n := range notes {
		_ = batch.Index(n.ID.String(), noteDocument(n))
	}
	if err := b.idx.Batch(batch); err != nil {
		debuglog.Warnf("indexing %d notes: %v", len(notes), err)
	}
}

// OnAccountDeleted removes every indexed note of the account.
func (b *BleveEngine) OnAccountDeleted(accountID int64) {
	tq := bleve.NewTermQuery(strconv.FormatInt(accountID, 10))
	tq.SetField("account_id")

	const size = 1000
	for {
		req := bleve.NewSearchRequestOptions(tq, size, 0, false)
		res, err := b.idx.Search(req)
		if err != nil || res == nil || len(res.Hits) == 0 {
			return
		}
		batch := b.idx.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := b.idx.Batch(batch); err != nil {
			debuglog.Warnf("removing notes of account %d from index: %v", accountID, err)
			return
		}
		if len(res.Hits) < size {
			return
		}
	}
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}
