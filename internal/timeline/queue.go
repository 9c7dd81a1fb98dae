package timeline

import (
	"context"
	"sync"

	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/storage"
)

type mergeOutcome int

const (
	mergeAdded mergeOutcome = iota
	mergeDuplicate
	mergeSuppressed
)

// QueueStats counts what happened to streamed ids.
type QueueStats struct {
	Enqueued   int64
	Dropped    int64
	Merged     int64
	Duplicates int64
	Suppressed int64
	Failed     int64
}

// Processed is the number of ids the consumer has finished with.
func (s QueueStats) Processed() int64 {
	return s.Merged + s.Duplicates + s.Suppressed + s.Failed
}

type mergeFunc func(ctx context.Context, id storage.NoteID) (mergeOutcome, error)

// MergeQueue buffers streamed note ids for a single consumer goroutine.
// Enqueue never blocks: when the buffer is full the oldest id is dropped.
type MergeQueue struct {
	ids    chan storage.NoteID
	merge  mergeFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *debuglog.FieldLogger

	// enqMu serializes producers so the drop-oldest step is exact.
	enqMu sync.Mutex

	statsMu sync.Mutex
	stats   QueueStats
}

func newMergeQueue(capacity int, merge mergeFunc, logger *debuglog.FieldLogger) *MergeQueue {
	if capacity <= 0 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &MergeQueue{
		ids:    make(chan storage.NoteID, capacity),
		merge:  merge,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	q.wg.Add(1)
	go q.processLoop()

	return q
}

// Enqueue reports false only when the queue is closed.
func (q *MergeQueue) Enqueue(id storage.NoteID) bool {
	select {
	case <-q.ctx.Done():
		return false
	default:
	}

	q.enqMu.Lock()
	defer q.enqMu.Unlock()

	for {
		select {
		case q.ids <- id:
			q.count(func(s *QueueStats) { s.Enqueued++ })
			return true
		default:
		}

		select {
		case dropped := <-q.ids:
			q.count(func(s *QueueStats) { s.Dropped++ })
			q.logger.Debugf("queue full, dropped %s", dropped)
		default:
		}
	}
}

func (q *MergeQueue) processLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.ids:
			q.handle(id)
		}
	}
}

func (q *MergeQueue) handle(id storage.NoteID) {
	outcome, err := q.merge(q.ctx, id)
	if err != nil {
		if q.ctx.Err() == nil {
			q.logger.Warnf("merging streamed note %s: %v", id, err)
		}
		q.count(func(s *QueueStats) { s.Failed++ })
		return
	}

	switch outcome {
	case mergeAdded:
		q.count(func(s *QueueStats) { s.Merged++ })
	case mergeDuplicate:
		q.count(func(s *QueueStats) { s.Duplicates++ })
	case mergeSuppressed:
		q.count(func(s *QueueStats) { s.Suppressed++ })
	}
}

func (q *MergeQueue) count(fn func(*QueueStats)) {
	q.statsMu.Lock()
	fn(&q.stats)
	q.statsMu.Unlock()
}

func (q *MergeQueue) Stats() QueueStats {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return q.stats
}

// Len reports how many ids are waiting.
func (q *MergeQueue) Len() int {
	return len(q.ids)
}

// Close stops the consumer and waits for it. Pending ids are discarded.
func (q *MergeQueue) Close() {
	q.cancel()
	q.wg.Wait()
}
