// Package instance identifies the server software behind an instance URL.
package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/storage"
)

// ErrUnknownSoftware is returned when no detector recognizes the server.
var ErrUnknownSoftware = errors.New("unrecognized instance software")

// cacheTTL bounds how long a cached detection is trusted.
const cacheTTL = 24 * time.Hour

// Info describes a detected server.
type Info struct {
	URL  string               `json:"url"`
	Type storage.InstanceType `json:"type"`
	// Software is the name the server reports, e.g. "misskey", "firefish"
	// or "mastodon". Forks map onto the API family in Type.
	Software   string            `json:"software"`
	Version    string            `json:"version"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	DetectedAt time.Time         `json:"detected_at"`
}

// Detector identifies instance software.
type Detector interface {
	// Name returns the detector name for identification
	Name() string

	// CanHandle returns true if this detector can check the given URL
	CanHandle(url string) bool

	// Detect queries the server. It returns ErrUnknownSoftware when the
	// server answered but is not something fwtl can talk to.
	Detect(ctx context.Context, url string, client *api.Client) (*Info, error)

	// Priority orders detectors; higher runs first
	Priority() int
}

// MetaStore persists detection results; *storage.Store satisfies it.
type MetaStore interface {
	GetMeta(key string) ([]byte, error)
	SetMeta(key string, value []byte) error
}

// Registry manages all registered detectors
type Registry struct {
	detectors []Detector
	client    *api.Client
	cache     MetaStore
	now       func() time.Time
}

func NewRegistry(client *api.Client) *Registry {
	return &Registry{
		detectors: make([]Detector, 0),
		client:    client,
		now:       time.Now,
	}
}

// Default returns a registry with the nodeinfo detector and the Misskey and
// Mastodon API fallbacks.
func Default(client *api.Client) *Registry {
	r := NewRegistry(client)
	r.Register(NodeInfoDetector{})
	r.Register(MisskeyDetector{})
	r.Register(MastodonDetector{})
	return r
}

func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// SetCache enables caching of successful detections in store.
func (r *Registry) SetCache(store MetaStore) {
	r.cache = store
}

// FindDetector returns the highest priority detector that can handle url.
func (r *Registry) FindDetector(url string) Detector {
	var best Detector
	highestPriority := -1

	for _, d := range r.detectors {
		if d.CanHandle(url) && d.Priority() > highestPriority {
			best = d
			highestPriority = d.Priority()
		}
	}

	return best
}

// ListDetectors returns all registered detectors
func (r *Registry) ListDetectors() []Detector {
	return append([]Detector(nil), r.detectors...)
}

// Detect runs the applicable detectors from highest to lowest priority and
// returns the first answer.
func (r *Registry) Detect(ctx context.Context, url string) (*Info, error) {
	url = strings.TrimRight(url, "/")
	if info, ok := r.cached(url); ok {
		return info, nil
	}

	candidates := make([]Detector, 0, len(r.detectors))
	for _, d := range r.detectors {
		if d.CanHandle(url) {
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority() > candidates[j].Priority()
	})

	var errs []error
	for _, d := range candidates {
		info, err := d.Detect(ctx, url, r.client)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			debuglog.Debugf("detector %s on %s: %v", d.Name(), url, err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		info.URL = url
		info.DetectedAt = r.now()
		r.store(info)
		return info, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no detector for %s", ErrUnknownSoftware, url)
	}
	return nil, fmt.Errorf("detecting %s: %w", url, errors.Join(errs...))
}

// Refresh fills in the instance type and version of account when either is
// missing. It reports whether account changed.
func (r *Registry) Refresh(ctx context.Context, account *storage.Account) (bool, error) {
	if account.InstanceType != "" && account.Version != "" {
		return false, nil
	}
	info, err := r.Detect(ctx, account.InstanceURL)
	if err != nil {
		return false, err
	}

	changed := false
	if account.InstanceType == "" {
		account.InstanceType = info.Type
		changed = true
	}
	if account.Version == "" && info.Type == account.InstanceType && info.Version != "" {
		account.Version = info.Version
		changed = true
	}
	return changed, nil
}

func cacheKey(url string) string {
	return "instance:" + url
}

func (r *Registry) cached(url string) (*Info, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, err := r.cache.GetMeta(cacheKey(url))
	if err != nil || raw == nil {
		return nil, false
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, false
	}
	if r.now().Sub(info.DetectedAt) > cacheTTL {
		return nil, false
	}
	return &info, true
}

func (r *Registry) store(info *Info) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := r.cache.SetMeta(cacheKey(info.URL), raw); err != nil {
		debuglog.Warnf("caching instance info for %s: %v", info.URL, err)
	}
}
