package instance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/storage"
)

const nodeInfoSchemaPrefix = "http://nodeinfo.diaspora.software/ns/schema/"

// Software names reported by nodeinfo, grouped by the API they speak.
var softwareFamilies = map[string]storage.InstanceType{
	"misskey":    storage.InstanceMisskey,
	"calckey":    storage.InstanceMisskey,
	"firefish":   storage.InstanceMisskey,
	"foundkey":   storage.InstanceMisskey,
	"sharkey":    storage.InstanceMisskey,
	"cherrypick": storage.InstanceMisskey,
	"iceshrimp":  storage.InstanceMisskey,
	"meisskey":   storage.InstanceMisskey,

	"mastodon":   storage.InstanceMastodon,
	"hometown":   storage.InstanceMastodon,
	"fedibird":   storage.InstanceMastodon,
	"pleroma":    storage.InstanceMastodon,
	"akkoma":     storage.InstanceMastodon,
	"gotosocial": storage.InstanceMastodon,
}

// Classify maps a nodeinfo software name onto an API family.
func Classify(software string) (storage.InstanceType, bool) {
	t, ok := softwareFamilies[strings.ToLower(strings.TrimSpace(software))]
	return t, ok
}

type nodeInfoLinks struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

type nodeInfoDocument struct {
	Software struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"software"`
	Metadata map[string]any `json:"metadata"`
}

// NodeInfoDetector reads /.well-known/nodeinfo, which every supported
// server publishes.
type NodeInfoDetector struct{}

func (NodeInfoDetector) Name() string { return "nodeinfo" }

func (NodeInfoDetector) CanHandle(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func (NodeInfoDetector) Priority() int { return 100 }

func (NodeInfoDetector) Detect(ctx context.Context, url string, client *api.Client) (*Info, error) {
	var links nodeInfoLinks
	if _, err := client.GetJSON(ctx, api.JoinURL(url, "/.well-known/nodeinfo"), "", &links); err != nil {
		return nil, err
	}

	href := newestSchema(links)
	if href == "" {
		return nil, fmt.Errorf("no nodeinfo schema advertised")
	}

	var doc nodeInfoDocument
	if _, err := client.GetJSON(ctx, href, "", &doc); err != nil {
		return nil, err
	}

	kind, ok := Classify(doc.Software.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSoftware, doc.Software.Name)
	}

	info := &Info{
		Type:     kind,
		Software: strings.ToLower(doc.Software.Name),
		Version:  doc.Software.Version,
	}
	if name, ok := doc.Metadata["nodeName"].(string); ok && name != "" {
		info.Metadata = map[string]string{"nodeName": name}
	}
	return info, nil
}

// newestSchema returns the href of the highest advertised schema version.
func newestSchema(links nodeInfoLinks) string {
	type candidate struct{ version, href string }
	var found []candidate
	for _, l := range links.Links {
		if v, ok := strings.CutPrefix(l.Rel, nodeInfoSchemaPrefix); ok && l.Href != "" {
			found = append(found, candidate{v, l.Href})
		}
	}
	if len(found) == 0 {
		return ""
	}
	sort.Slice(found, func(i, j int) bool { return found[i].version > found[j].version })
	return found[0].href
}
