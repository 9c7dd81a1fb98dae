package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/feed"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
)

const maxConcurrentRefresh = 5

// AccountSource resolves account ids; *storage.Store satisfies it.
type AccountSource interface {
	GetAccount(id int64) (*storage.Account, error)
}

// Registry owns one Store per (account, kind) and shares the HTTP client,
// feed fetcher and note adder between them.
type Registry struct {
	accounts AccountSource
	http     *api.Client
	feeds    *feed.Fetcher
	adder    *notes.Adder
	config   *config.Config

	mu     sync.RWMutex
	stores map[string]*Store
}

func NewRegistry(accounts AccountSource, adder *notes.Adder, cfg *config.Config) *Registry {
	client := api.NewClient(cfg)
	return &Registry{
		accounts: accounts,
		http:     client,
		feeds:    feed.NewFetcher(client),
		adder:    adder,
		config:   cfg,
		stores:   make(map[string]*Store),
	}
}

// SetForceRefresh makes feed timelines ignore ETag/Last-Modified.
func (r *Registry) SetForceRefresh(force bool) {
	r.feeds.SetIgnoreCache(force)
}

func storeKey(accountID int64, kind Kind) string {
	return fmt.Sprintf("%d/%s", accountID, kind)
}

// Open returns the store for (accountID, kind), creating it on first use.
func (r *Registry) Open(accountID int64, kind Kind) (*Store, error) {
	key := storeKey(accountID, kind)

	r.mu.RLock()
	s, ok := r.stores[key]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	account, err := r.accounts.GetAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	s, err = NewStore(kind, Deps{
		Account: account,
		HTTP:    r.http,
		Adder:   r.adder,
		Feeds:   r.feeds,
		Config:  r.config,
	})
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}

func (r *Registry) Get(accountID int64, kind Kind) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[storeKey(accountID, kind)]
	return s, ok
}

// Stores lists the open stores ordered by account, then kind.
func (r *Registry) Stores() []*Store {
	r.mu.RLock()
	out := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].accountID != out[j].accountID {
			return out[i].accountID < out[j].accountID
		}
		return out[i].kind.String() < out[j].kind.String()
	})
	return out
}

// RefreshAll loads the future page of every open store with bounded
// concurrency. All stores are attempted; failures are joined.
func (r *Registry) RefreshAll(ctx context.Context) error {
	stores := r.Stores()
	if len(stores) == 0 {
		return nil
	}

	var (
		errMu sync.Mutex
		errs  []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRefresh)
	for _, s := range stores {
		g.Go(func() error {
			if _, err := s.LoadFuture(gctx); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", storeKey(s.accountID, s.kind), err))
				errMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(errs) > 0 {
		return fmt.Errorf("refresh errors: %w", errors.Join(errs...))
	}
	return nil
}

// Remove closes and forgets the store for (accountID, kind).
func (r *Registry) Remove(accountID int64, kind Kind) {
	key := storeKey(accountID, kind)
	r.mu.Lock()
	s, ok := r.stores[key]
	delete(r.stores, key)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}
