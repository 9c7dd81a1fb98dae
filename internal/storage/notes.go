package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/pders01/fwtl/internal/debuglog"
)

// NoteListener is notified after notes are added or updated. Search indexes
// implement it.
type NoteListener interface {
	OnNotesAdded(notes []*Note)
}

// NoteDataSource is the shared, in-process note cache every timeline reads
// from. Notes are upserted by id and outlive any single timeline. When a
// Store is attached, writes go through to bbolt and misses fall back to it.
type NoteDataSource struct {
	mu        sync.RWMutex
	notes     map[NoteID]*Note
	observers map[NoteID]map[int]chan *Note
	nextObs   int
	listeners []NoteListener
	persist   *Store
}

func NewNoteDataSource(persist *Store) *NoteDataSource {
	return &NoteDataSource{
		notes:     make(map[NoteID]*Note),
		observers: make(map[NoteID]map[int]chan *Note),
		persist:   persist,
	}
}

// AddListener registers l for every subsequent Add.
func (d *NoteDataSource) AddListener(l NoteListener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Add upserts a single note. It reports whether the id was new to the cache.
func (d *NoteDataSource) Add(note *Note) (bool, error) {
	created, err := d.AddAll([]*Note{note})
	if err != nil {
		return false, err
	}
	return created[0], nil
}

// AddAll upserts notes and returns, per input, whether the id was new.
func (d *NoteDataSource) AddAll(notes []*Note) ([]bool, error) {
	created := make([]bool, len(notes))
	if len(notes) == 0 {
		return created, nil
	}

	now := time.Now()
	d.mu.Lock()
	for i, n := range notes {
		if n.UpdatedAt.IsZero() {
			n.UpdatedAt = now
		}
		_, exists := d.notes[n.ID]
		created[i] = !exists
		d.notes[n.ID] = n
		for _, ch := range d.observers[n.ID] {
			publishLatest(ch, n)
		}
	}
	listeners := append([]NoteListener(nil), d.listeners...)
	d.mu.Unlock()

	if d.persist != nil {
		if err := d.persist.SaveNotes(notes); err != nil {
			debuglog.Warnf("note cache write-through failed: %v", err)
			return created, err
		}
	}

	for _, l := range listeners {
		l.OnNotesAdded(notes)
	}
	return created, nil
}

// Get returns the note for id, consulting the persistent store on a miss.
func (d *NoteDataSource) Get(id NoteID) (*Note, error) {
	d.mu.RLock()
	n, ok := d.notes[id]
	d.mu.RUnlock()
	if ok {
		return n, nil
	}

	if d.persist == nil {
		return nil, ErrNoteNotFound
	}
	n, err := d.persist.GetNote(id)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if cur, ok := d.notes[id]; ok {
		n = cur
	} else {
		d.notes[id] = n
	}
	d.mu.Unlock()
	return n, nil
}

// GetIn resolves ids in order, skipping any that are unknown.
func (d *NoteDataSource) GetIn(ids []NoteID) []*Note {
	out := make([]*Note, 0, len(ids))
	for _, id := range ids {
		n, err := d.Get(id)
		if err != nil {
			if !errors.Is(err, ErrNoteNotFound) {
				debuglog.Warnf("resolving note %s: %v", id, err)
			}
			continue
		}
		out = append(out, n)
	}
	return out
}

// Observe delivers the latest version of a note each time it is upserted.
// Slow observers only ever see the newest value. The returned func
// unsubscribes and closes the channel.
func (d *NoteDataSource) Observe(id NoteID) (<-chan *Note, func()) {
	ch := make(chan *Note, 1)

	d.mu.Lock()
	key := d.nextObs
	d.nextObs++
	if d.observers[id] == nil {
		d.observers[id] = make(map[int]chan *Note)
	}
	d.observers[id][key] = ch
	if n, ok := d.notes[id]; ok {
		ch <- n
	}
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.observers[id], key)
			if len(d.observers[id]) == 0 {
				delete(d.observers, id)
			}
			d.mu.Unlock()
			close(ch)
		})
	}
}

// Len reports how many notes are held in memory.
func (d *NoteDataSource) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.notes)
}

func publishLatest(ch chan *Note, n *Note) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- n:
	default:
	}
}
