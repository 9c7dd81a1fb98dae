// Package timeline keeps one paged, newest-first list of note ids per
// (account, kind) and merges streamed notes into it.
package timeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/api/mastodon"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/feed"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/pageable"
	"github.com/pders01/fwtl/internal/paginator"
	"github.com/pders01/fwtl/internal/storage"
)

// Deps are the collaborators a Store is built from. Config may be nil.
type Deps struct {
	Account *storage.Account
	HTTP    *api.Client
	Adder   *notes.Adder
	Feeds   *feed.Fetcher
	Config  *config.Config
}

type Store struct {
	kind      Kind
	accountID int64
	pageSize  int
	core      *core
	queue     *MergeQueue
	notes     NoteGetter
	logger    *debuglog.FieldLogger

	future   func(context.Context) (int, error)
	previous func(context.Context) (int, error)
	// reset runs under the store mutex on Clear; sources with cursors
	// outside the id list use it.
	reset func()

	latest       atomic.Pointer[storage.NoteID]
	futureEdge   atomic.Bool
	previousEdge atomic.Bool

	closeOnce sync.Once
}

type resetter interface {
	resetCursors()
}

type source[R any] interface {
	paginator.IDGetter
	paginator.FutureLoader[R]
	paginator.PreviousLoader[R]
	paginator.EntityConverter[R, storage.NoteID]
}

func bind[R any](s *Store, src source[R]) {
	s.future = paginator.NewFuturePagingController[R, storage.NoteID](s.core, s.core, src, src).LoadFuture
	s.previous = paginator.NewPreviousPagingController[R, storage.NoteID](s.core, s.core, src, src).LoadPrevious
	if r, ok := src.(resetter); ok {
		s.reset = r.resetCursors
	}
}

// NewStore builds the store for kind on deps.Account. It fails with
// ErrUnsupportedKind when the kind cannot be paged for that account and
// with ErrMissingCollaborator when a required dependency is nil.
func NewStore(kind Kind, deps Deps) (*Store, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if deps.Account == nil || deps.Adder == nil {
		return nil, fmt.Errorf("%w: account and note adder are required", ErrMissingCollaborator)
	}
	account := deps.Account
	if !kind.SupportedBy(account.InstanceType) {
		return nil, fmt.Errorf("%w: %s on a %s account", ErrUnsupportedKind, kind.Type, account.InstanceType)
	}

	pageSize := config.DefaultPageSize
	capacity := config.DefaultQueueCapacity
	if deps.Config != nil {
		if deps.Config.Timeline.PageSize > 0 {
			pageSize = deps.Config.Timeline.PageSize
		}
		if deps.Config.Timeline.QueueCapacity > 0 {
			capacity = deps.Config.Timeline.QueueCapacity
		}
	}

	logger := debuglog.WithFields(map[string]any{
		"account":  account.ID,
		"timeline": kind.String(),
	})
	s := &Store{
		kind:      kind,
		accountID: account.ID,
		pageSize:  pageSize,
		core:      newCore(),
		notes:     deps.Adder.DataSource(),
		logger:    logger,
	}

	if err := s.bindSource(deps); err != nil {
		return nil, err
	}
	s.core.onSettled = s.settled

	s.queue = newMergeQueue(capacity, s.appendStreamNote, s.logger)
	return s, nil
}

func (s *Store) bindSource(deps Deps) error {
	account := deps.Account
	kind := s.kind

	if kind.Type == KindFeed {
		fetcher := deps.Feeds
		if fetcher == nil {
			if deps.HTTP == nil {
				return fmt.Errorf("%w: feed fetcher or HTTP client is required", ErrMissingCollaborator)
			}
			fetcher = feed.NewFetcher(deps.HTTP)
		}
		bind[*feed.Item](s, &feedSource{
			core:      s.core,
			fetcher:   fetcher,
			adder:     deps.Adder,
			accountID: account.ID,
			url:       kind.Param,
		})
		return nil
	}

	if deps.HTTP == nil {
		return fmt.Errorf("%w: HTTP client is required", ErrMissingCollaborator)
	}

	switch account.InstanceType {
	case storage.InstanceMisskey:
		version, err := misskey.ParseVersion(account.Version)
		if err != nil {
			return fmt.Errorf("account %d: %w", account.ID, err)
		}
		switch {
		case kind.Type == KindAntenna && !version.AtLeast(11, 0):
			return fmt.Errorf("%w: antenna timeline needs Misskey 11 or newer (have %s)", ErrUnsupportedKind, version)
		case kind.Type == KindChannel && !version.AtLeast(12, 0):
			return fmt.Errorf("%w: channel timeline needs Misskey 12 or newer (have %s)", ErrUnsupportedKind, version)
		}

		client := misskey.NewClient(deps.HTTP, account.InstanceURL, account.Token, version)
		if kind.Type == KindFavorite {
			bind[favoriteItem](s, &favoriteSource{
				core:        s.core,
				adder:       deps.Adder,
				accountID:   account.ID,
				limit:       s.pageSize,
				misskey:     client,
				favoriteIDs: make(map[storage.NoteID]string),
			})
			return nil
		}
		endpoint, req := misskeyRequest(kind, s.pageSize)
		bind[misskey.Note](s, &misskeySource{
			core:      s.core,
			client:    client,
			adder:     deps.Adder,
			accountID: account.ID,
			endpoint:  endpoint,
			base:      req,
		})
		return nil

	case storage.InstanceMastodon:
		client := mastodon.NewClient(deps.HTTP, account.InstanceURL, account.Token)
		if kind.Type == KindMastodonFavourites {
			bind[favoriteItem](s, &favoriteSource{
				core:        s.core,
				adder:       deps.Adder,
				accountID:   account.ID,
				limit:       s.pageSize,
				mastodon:    client,
				favoriteIDs: make(map[storage.NoteID]string),
			})
			return nil
		}
		path, req := mastodonRequest(kind, s.pageSize)
		bind[mastodon.Status](s, &mastodonSource{
			core:      s.core,
			client:    client,
			adder:     deps.Adder,
			accountID: account.ID,
			path:      path,
			base:      req,
		})
		return nil
	}

	return fmt.Errorf("%w: instance type %q", ErrUnsupportedKind, account.InstanceType)
}

func (s *Store) Kind() Kind       { return s.kind }
func (s *Store) AccountID() int64 { return s.accountID }

// LoadFuture fetches notes newer than the head. A page with fewer than
// PageSize new ids means the present has been reached: FutureEdgeReached
// turns true and any pending InitialLoadQuery is retired.
func (s *Store) LoadFuture(ctx context.Context) (int, error) {
	added, err := s.future(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Debugf("load future: added=%d edge=%v", added, s.FutureEdgeReached())
	return added, nil
}

// LoadPrevious fetches notes older than the tail. On an empty timeline it
// starts from the pending InitialLoadQuery when the source supports one.
func (s *Store) LoadPrevious(ctx context.Context) (int, error) {
	added, err := s.previous(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Debugf("load previous: added=%d edge=%v", added, s.PreviousEdgeReached())
	return added, nil
}

// settled runs under the store mutex after every successful load. The
// pending query stays only while the list sits at its position in the
// past: a load that ignored it started at the present, and a short future
// page has caught up with it.
func (s *Store) settled(future bool, added int) {
	reached := added < s.pageSize
	if future {
		s.futureEdge.Store(reached)
	} else {
		s.previousEdge.Store(reached)
	}

	if s.core.query != nil && (!s.core.queryApplied || (future && reached)) {
		s.core.setQuery(nil)
	}
	s.latest.Store(nil)
}

// Clear empties the timeline back to Loading(Init) and installs query as
// the pending initial-load position. A nil or empty query means "latest".
func (s *Store) Clear(ctx context.Context, query *InitialLoadQuery) error {
	if query.empty() {
		query = nil
	} else {
		q := *query
		query = &q
	}

	return s.core.mu.WithLock(ctx, func() error {
		s.core.setQuery(query)
		if s.reset != nil {
			s.reset()
		}
		s.core.SetState(pageable.Init[storage.NoteID]())
		s.futureEdge.Store(false)
		s.previousEdge.Store(false)
		return nil
	})
}

// OnReceiveNote queues a streamed note id for merging. It never blocks and
// performs no I/O.
func (s *Store) OnReceiveNote(id storage.NoteID) {
	if !s.queue.Enqueue(id) {
		s.logger.Debugf("store closed, ignoring streamed note %s", id)
	}
}

// LatestReceiveNoteID is the most recent streamed id that was actually
// added since the last successful load, or nil.
func (s *Store) LatestReceiveNoteID() *storage.NoteID {
	if id := s.latest.Load(); id != nil {
		v := *id
		return &v
	}
	return nil
}

func (s *Store) State() NoteState {
	return s.core.current()
}

// Subscribe streams distinct state snapshots, starting with the current
// one. Slow readers skip to the newest. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan NoteState, func()) {
	return s.core.subscribe()
}

func (s *Store) FutureEdgeReached() bool   { return s.futureEdge.Load() }
func (s *Store) PreviousEdgeReached() bool { return s.previousEdge.Load() }

func (s *Store) QueueStats() QueueStats {
	return s.queue.Stats()
}

// Close stops the merge consumer and ends all subscriptions.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.queue.Close()
		s.core.closeSubscribers()
	})
}

func (s *Store) appendStreamNote(ctx context.Context, id storage.NoteID) (mergeOutcome, error) {
	outcome := mergeDuplicate
	err := s.core.mu.WithLock(ctx, func() error {
		if s.core.pendingQuery() != nil {
			outcome = mergeSuppressed
			return nil
		}

		content := s.core.State().Content()
		if !content.Exists() {
			s.core.SetState(pageable.Fixed(pageable.Exist([]storage.NoteID{id})))
			s.latest.Store(&id)
			outcome = mergeAdded
			return nil
		}

		items := content.Items()
		for _, existing := range items {
			if existing == id {
				return nil
			}
		}

		merged := make([]storage.NoteID, 0, len(items)+1)
		merged = append(merged, id)
		merged = append(merged, items...)
		s.core.SetState(pageable.Fixed(pageable.Exist(merged)))
		s.latest.Store(&id)
		outcome = mergeAdded
		return nil
	})
	return outcome, err
}
