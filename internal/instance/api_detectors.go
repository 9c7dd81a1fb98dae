package instance

import (
	"context"
	"strings"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/storage"
)

// MisskeyDetector asks /api/meta, for servers that hide nodeinfo.
type MisskeyDetector struct{}

func (MisskeyDetector) Name() string              { return "misskey-meta" }
func (MisskeyDetector) CanHandle(url string) bool { return url != "" }
func (MisskeyDetector) Priority() int             { return 50 }

func (MisskeyDetector) Detect(ctx context.Context, url string, client *api.Client) (*Info, error) {
	version, err := misskey.NewClient(client, url, "", misskey.Version{}).Meta(ctx)
	if err != nil {
		return nil, err
	}
	info := &Info{Type: storage.InstanceMisskey, Software: "misskey"}
	if !version.IsZero() {
		info.Version = version.String()
	}
	return info, nil
}

// MastodonDetector reads GET /api/v1/instance.
type MastodonDetector struct{}

func (MastodonDetector) Name() string              { return "mastodon-instance" }
func (MastodonDetector) CanHandle(url string) bool { return url != "" }
func (MastodonDetector) Priority() int             { return 40 }

func (MastodonDetector) Detect(ctx context.Context, url string, client *api.Client) (*Info, error) {
	var instance struct {
		URI     string `json:"uri"`
		Title   string `json:"title"`
		Version string `json:"version"`
	}
	if _, err := client.GetJSON(ctx, api.JoinURL(url, "/api/v1/instance"), "", &instance); err != nil {
		return nil, err
	}

	info := &Info{
		Type:     storage.InstanceMastodon,
		Software: "mastodon",
		Version:  mastodonVersion(instance.Version),
	}
	if instance.Title != "" {
		info.Metadata = map[string]string{"title": instance.Title}
	}
	return info, nil
}

// mastodonVersion strips compatibility suffixes like
// "2.7.2 (compatible; Pleroma 2.5.0)".
func mastodonVersion(v string) string {
	if i := strings.Index(v, " "); i >= 0 {
		return v[:i]
	}
	return v
}
