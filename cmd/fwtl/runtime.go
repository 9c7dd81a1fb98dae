package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/search"
	"github.com/pders01/fwtl/internal/storage"
	"github.com/pders01/fwtl/internal/streaming"
	"github.com/pders01/fwtl/internal/timeline"
	"github.com/pders01/fwtl/internal/tui"
	"github.com/pders01/fwtl/internal/validation"
)

var errNoAccounts = errors.New("no accounts configured; run `fwtl config generate` and add one")

// runtime wires the note cache, the timeline registry and search for one
// command invocation.
type runtime struct {
	config   *config.Config
	urls     *validation.URLValidator
	store    *storage.Store
	notes    *storage.NoteDataSource
	adder    *notes.Adder
	registry *timeline.Registry
	http     *api.Client
	searcher search.Searcher
}

// loadConfig reads the configuration and validates its paths and instance
// URLs. --db overrides the database path.
func loadConfig() (*config.Config, *validation.URLValidator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	paths := validation.NewSecurePathHandler()
	urls := validation.NewURLValidator()
	if allowLocal {
		paths = validation.NewPermissivePathHandler()
		urls = validation.NewPermissiveURLValidator()
	}
	if err := paths.SecureConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validation.SecureAccounts(cfg, urls); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, urls, nil
}

func openRuntime() (*runtime, error) {
	cfg, urls, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.Path); err != nil {
		return nil, err
	}

	store, err := storage.NewStoreWithTimeout(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := syncAccounts(store, cfg.Accounts); err != nil {
		store.Close()
		return nil, err
	}

	ds := storage.NewNoteDataSource(store)
	searcher := search.Open(store, cfg.Database.SearchIndex)
	if l, ok := searcher.(storage.NoteListener); ok {
		ds.AddListener(l)
	}
	adder := notes.NewAdder(ds)

	debuglog.Infof("runtime ready: db=%s accounts=%d", cfg.Database.Path, len(cfg.Accounts))
	return &runtime{
		config:   cfg,
		urls:     urls,
		store:    store,
		notes:    ds,
		adder:    adder,
		registry: timeline.NewRegistry(store, adder, cfg),
		http:     api.NewClient(cfg),
		searcher: searcher,
	}, nil
}

func (rt *runtime) Close() {
	rt.registry.Close()
	if c, ok := rt.searcher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			debuglog.Warnf("closing search index: %v", err)
		}
	}
	if err := rt.store.Close(); err != nil {
		debuglog.Warnf("closing database: %v", err)
	}
	debuglog.Close()
}

// syncAccounts mirrors the configured accounts into the database. Instance
// type and version detected earlier are kept when the config leaves them
// empty.
func syncAccounts(store *storage.Store, accounts []config.AccountConfig) error {
	for _, ac := range accounts {
		if ac.ID <= 0 {
			return fmt.Errorf("account %q: id must be positive", ac.Name)
		}
		account := &storage.Account{
			ID:           ac.ID,
			Name:         ac.Name,
			InstanceType: storage.InstanceType(strings.ToLower(ac.InstanceType)),
			InstanceURL:  ac.InstanceURL,
			Token:        ac.Token,
			Version:      ac.Version,
			UpdatedAt:    time.Now(),
		}
		if prev, err := store.GetAccount(ac.ID); err == nil && prev.InstanceURL == account.InstanceURL {
			if account.InstanceType == "" {
				account.InstanceType = prev.InstanceType
			}
			if account.Version == "" && prev.InstanceType == account.InstanceType {
				account.Version = prev.Version
			}
		}
		if err := store.SaveAccount(account); err != nil {
			return fmt.Errorf("saving account %d: %w", ac.ID, err)
		}
	}
	return nil
}

// account returns the account selected with --account, or the first one.
func (rt *runtime) account() (*storage.Account, error) {
	if accountID != 0 {
		a, err := rt.store.GetAccount(accountID)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", accountID, err)
		}
		return a, nil
	}
	all, err := rt.store.GetAllAccounts()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errNoAccounts
	}
	return all[0], nil
}

// openStore parses kindArg and opens its store. Feed URLs go through the
// same validator as instance URLs.
func (rt *runtime) openStore(accountID int64, kindArg string) (*timeline.Store, error) {
	kind, err := timeline.ParseKind(kindArg)
	if err != nil {
		return nil, err
	}
	if kind.Type == timeline.KindFeed {
		u, err := rt.urls.ValidateAndNormalize(kind.Param)
		if err != nil {
			return nil, fmt.Errorf("feed URL: %w", err)
		}
		kind.Param = u
	}
	return rt.registry.Open(accountID, kind)
}

// openTabs opens the default timeline of each configured account, or only
// of the --account one. Accounts whose timeline cannot be opened are
// skipped.
func (rt *runtime) openTabs() ([]tui.Tab, error) {
	var tabs []tui.Tab
	for _, ac := range rt.config.Accounts {
		if accountID != 0 && ac.ID != accountID {
			continue
		}
		kindArg := ac.DefaultTimeline
		if kindArg == "" {
			kindArg = defaultKind(storage.InstanceType(strings.ToLower(ac.InstanceType)))
		}
		store, err := rt.openStore(ac.ID, kindArg)
		if err != nil {
			debuglog.Warnf("account %d: %v", ac.ID, err)
			continue
		}
		name := ac.Name
		if name == "" {
			name = fmt.Sprintf("#%d", ac.ID)
		}
		tabs = append(tabs, tui.Tab{Title: name + " · " + store.Kind().String(), Store: store})
	}
	if accountID != 0 && len(tabs) == 0 {
		return nil, fmt.Errorf("account %d: no timeline could be opened", accountID)
	}
	return tabs, nil
}

func defaultKind(t storage.InstanceType) string {
	if t == storage.InstanceMastodon {
		return string(timeline.KindMastodonHome)
	}
	return string(timeline.KindHome)
}

// startStreams runs one streaming client per account for the streamable
// tabs. The returned func stops them and waits.
func (rt *runtime) startStreams(ctx context.Context, tabs []tui.Tab) func() {
	targets := map[int64]map[timeline.Kind]streaming.Sink{}
	for _, tab := range tabs {
		kind := tab.Store.Kind()
		if !kind.Streaming() {
			continue
		}
		id := tab.Store.AccountID()
		if targets[id] == nil {
			targets[id] = map[timeline.Kind]streaming.Sink{}
		}
		targets[id][kind] = tab.Store
	}

	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	for id, t := range targets {
		account, err := rt.store.GetAccount(id)
		if err != nil {
			debuglog.Warnf("stream for account %d: %v", id, err)
			continue
		}
		client := streaming.NewClient(account, rt.adder, rt.http, rt.config)
		g.Go(func() error {
			if err := client.RunAll(ctx, t); err != nil {
				debuglog.Errorf("stream for account %d stopped: %v", id, err)
			}
			return nil
		})
	}

	return func() {
		cancel()
		_ = g.Wait()
	}
}
