package timeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func noteID(i int) string { return fmt.Sprintf("n%04d", i) }

// fakeMisskey serves note listings the way Misskey does: newest first,
// except for sinceId-only queries which come back oldest first.
type fakeMisskey struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	notes    []misskey.Note // ascending
	next     int
	requests []misskey.NotesRequest
	status   int
	block    chan struct{}
}

func newFakeMisskey(t *testing.T) *fakeMisskey {
	t.Helper()
	f := &fakeMisskey{t: t, next: 1}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// post appends n notes, each one minute newer than the last.
func (f *fakeMisskey) post(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for i := 0; i < n; i++ {
		id := noteID(f.next)
		text := "note " + id
		f.notes = append(f.notes, misskey.Note{
			ID:        id,
			CreatedAt: epoch.Add(time.Duration(f.next) * time.Minute),
			Text:      &text,
			UserID:    "u1",
			User:      misskey.User{ID: "u1", Username: "alice"},
		})
		ids = append(ids, id)
		f.next++
	}
	return ids
}

func (f *fakeMisskey) setStatus(code int) {
	f.mu.Lock()
	f.status = code
	f.mu.Unlock()
}

func (f *fakeMisskey) blockRequests() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	return f.block
}

func (f *fakeMisskey) lastRequest() misskey.NotesRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeMisskey) handle(w http.ResponseWriter, r *http.Request) {
	var req misskey.NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	status, block := f.status, f.block
	all := append([]misskey.Note(nil), f.notes...)
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR"}}`))
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = 10
	}

	var out []misskey.Note
	switch {
	case req.SinceID != "" && req.UntilID == "":
		for _, n := range all {
			if n.ID > req.SinceID && len(out) < limit {
				out = append(out, n)
			}
		}
	default:
		for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
			n := all[i]
			if req.UntilID != "" && n.ID >= req.UntilID {
				continue
			}
			if req.UntilDate != 0 && n.CreatedAt.UnixMilli() >= req.UntilDate {
				continue
			}
			out = append(out, n)
		}
	}
	if out == nil {
		out = []misskey.Note{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

type fixture struct {
	ds    *storage.NoteDataSource
	adder *notes.Adder
	http  *api.Client
	cfg   *config.Config
}

func newFixture() *fixture {
	ds := storage.NewNoteDataSource(nil)
	cfg := config.TestConfig()
	cfg.Timeline.PageSize = 10
	return &fixture{
		ds:    ds,
		adder: notes.NewAdder(ds),
		http:  api.NewClient(cfg),
		cfg:   cfg,
	}
}

func (fx *fixture) deps(account *storage.Account) Deps {
	return Deps{Account: account, HTTP: fx.http, Adder: fx.adder, Config: fx.cfg}
}

func misskeyAccount(url, version string) *storage.Account {
	return &storage.Account{
		ID:           1,
		InstanceType: storage.InstanceMisskey,
		InstanceURL:  url,
		Token:        "tok",
		Version:      version,
	}
}

func newMisskeyStore(t *testing.T, fx *fixture, f *fakeMisskey, kind Kind) *Store {
	t.Helper()
	s, err := NewStore(kind, fx.deps(misskeyAccount(f.server.URL, "12.119.0")))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// ids renders the state's note ids without the account prefix.
func ids(s NoteState) []string {
	out := make([]string, 0, s.Content().Len())
	for _, id := range s.GetOrNil() {
		out = append(out, id.NoteID)
	}
	return out
}

func descending(from, to int) []string {
	var out []string
	for i := from; i >= to; i-- {
		out = append(out, noteID(i))
	}
	return out
}

func mkID(native string) storage.NoteID {
	return storage.NoteID{AccountID: 1, NoteID: native}
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
