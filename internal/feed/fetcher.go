package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/pders01/fwtl/internal/api"
)

const acceptFeeds = "application/rss+xml, application/atom+xml, application/xml, text/xml"

// Fetcher polls feeds with conditional requests, remembering the validators
// of the last successful response per URL.
type Fetcher struct {
	client      *api.Client
	parser      *Parser
	mu          sync.Mutex
	validators  map[string]api.Conditional
	ignoreCache bool
}

func NewFetcher(client *api.Client) *Fetcher {
	return &Fetcher{
		client:     client,
		parser:     NewParser(),
		validators: make(map[string]api.Conditional),
	}
}

// SetIgnoreCache makes every fetch unconditional.
func (f *Fetcher) SetIgnoreCache(ignore bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignoreCache = ignore
}

// Fetch returns the parsed items of url. updated is false when the server
// reported the feed unchanged; items is then empty.
func (f *Fetcher) Fetch(ctx context.Context, url string) (items []*Item, updated bool, err error) {
	f.mu.Lock()
	cond := f.validators[url]
	if f.ignoreCache {
		cond = api.Conditional{}
	}
	f.mu.Unlock()

	resp, updated, err := f.client.Fetch(ctx, url, acceptFeeds, cond)
	if err != nil {
		return nil, false, err
	}
	if !updated {
		return nil, false, nil
	}
	defer resp.Body.Close()

	items, err = f.parser.Parse(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", url, err)
	}

	f.mu.Lock()
	f.validators[url] = api.ConditionalFrom(resp)
	f.mu.Unlock()

	return items, true, nil
}

// Forget drops the stored validators so the next fetch of url is unconditional.
func (f *Fetcher) Forget(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.validators, url)
}
