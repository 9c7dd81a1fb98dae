package timeline

import (
	"sync"

	"github.com/pders01/fwtl/internal/pageable"
	"github.com/pders01/fwtl/internal/paginator"
	"github.com/pders01/fwtl/internal/storage"
)

// NoteState is the paging state of a note timeline.
type NoteState = pageable.State[storage.NoteID]

// core is the state every source shares. state and query belong to mu; the
// snapshot is mirrored separately so readers never wait on a fetch.
type core struct {
	mu    *paginator.Mutex
	state NoteState
	query *InitialLoadQuery
	// queryApplied records that a load positioned the list at query.
	queryApplied bool
	onSettled    func(future bool, added int)

	snapMu   sync.RWMutex
	snapshot NoteState
	subs     map[int]chan NoteState
	nextSub  int
	closed   bool
}

func newCore() *core {
	return &core{
		mu:       paginator.NewMutex(),
		state:    pageable.Init[storage.NoteID](),
		snapshot: pageable.Init[storage.NoteID](),
		subs:     make(map[int]chan NoteState),
	}
}

func (c *core) Mutex() *paginator.Mutex { return c.mu }

// State must be called with mu held.
func (c *core) State() NoteState { return c.state }

// SetState must be called with mu held.
func (c *core) SetState(s NoteState) {
	c.state = s
	c.publish(s)
}

// pendingQuery must be called with mu held.
func (c *core) pendingQuery() *InitialLoadQuery { return c.query }

// markQueryApplied must be called with mu held, by a source that sent the
// pending query's position with the current request.
func (c *core) markQueryApplied() { c.queryApplied = true }

// setQuery must be called with mu held.
func (c *core) setQuery(q *InitialLoadQuery) {
	c.query = q
	c.queryApplied = false
}

// Settled is called by the paging controllers with mu held.
func (c *core) Settled(future bool, added int) {
	if c.onSettled != nil {
		c.onSettled(future, added)
	}
}

func (c *core) publish(s NoteState) {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	if pageable.Equal(c.snapshot, s) {
		return
	}
	c.snapshot = s
	for _, ch := range c.subs {
		sendLatest(ch, s)
	}
}

func (c *core) current() NoteState {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

func (c *core) subscribe() (<-chan NoteState, func()) {
	ch := make(chan NoteState, 1)

	c.snapMu.Lock()
	if c.closed {
		c.snapMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	key := c.nextSub
	c.nextSub++
	c.subs[key] = ch
	ch <- c.snapshot
	c.snapMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.snapMu.Lock()
			if _, ok := c.subs[key]; ok {
				delete(c.subs, key)
				close(ch)
			}
			c.snapMu.Unlock()
		})
	}
}

func (c *core) closeSubscribers() {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	c.closed = true
	for key, ch := range c.subs {
		delete(c.subs, key)
		close(ch)
	}
}

// headID and tailID must be called with mu held.
func (c *core) headID() (storage.NoteID, bool) {
	items := c.state.GetOrNil()
	if len(items) == 0 {
		return storage.NoteID{}, false
	}
	return items[0], true
}

func (c *core) tailID() (storage.NoteID, bool) {
	items := c.state.GetOrNil()
	if len(items) == 0 {
		return storage.NoteID{}, false
	}
	return items[len(items)-1], true
}

// sendLatest replaces any undelivered value so slow subscribers only ever
// see the newest snapshot.
func sendLatest(ch chan NoteState, s NoteState) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
