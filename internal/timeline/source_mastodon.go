package timeline

import (
	"context"

	"github.com/pders01/fwtl/internal/api/mastodon"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
)

// mastodonSource pages Mastodon timelines. Status ids double as cursors;
// the Link header cursors take over whenever the list has no edge to
// offer and for paging back past the last fetched page.
type mastodonSource struct {
	*core
	client    *mastodon.Client
	adder     *notes.Adder
	accountID int64
	path      string
	base      mastodon.TimelineRequest

	linkMinID string
	linkMaxID string
}

func (s *mastodonSource) SinceID() string {
	if id, ok := s.headID(); ok {
		return id.NoteID
	}
	return s.linkMinID
}

func (s *mastodonSource) UntilID() string {
	if s.linkMaxID != "" {
		return s.linkMaxID
	}
	if id, ok := s.tailID(); ok {
		return id.NoteID
	}
	return ""
}

func (s *mastodonSource) LoadFuture(ctx context.Context) ([]mastodon.Status, error) {
	req := s.base
	req.MinID = s.SinceID()
	page, err := s.client.Timeline(ctx, s.path, req)
	if err != nil {
		return nil, err
	}
	if page.Link.MinID != "" {
		s.linkMinID = page.Link.MinID
	}
	if s.linkMaxID == "" {
		s.linkMaxID = page.Link.MaxID
	}
	return page.Statuses, nil
}

func (s *mastodonSource) LoadPrevious(ctx context.Context) ([]mastodon.Status, error) {
	req := s.base
	req.MaxID = s.UntilID()
	page, err := s.client.Timeline(ctx, s.path, req)
	if err != nil {
		return nil, err
	}
	if page.Link.MaxID != "" {
		s.linkMaxID = page.Link.MaxID
	}
	return page.Statuses, nil
}

func (s *mastodonSource) ConvertAll(_ context.Context, raw []mastodon.Status) ([]storage.NoteID, error) {
	return s.adder.AddMastodon(s.accountID, raw)
}

func (s *mastodonSource) resetCursors() {
	s.linkMinID = ""
	s.linkMaxID = ""
}

func mastodonRequest(k Kind, limit int) (string, mastodon.TimelineRequest) {
	req := mastodon.TimelineRequest{Limit: limit, OnlyMedia: k.OnlyMedia}
	switch k.Type {
	case KindMastodonHome:
		return mastodon.PathHomeTimeline, req
	case KindMastodonLocal:
		req.Local = true
		return mastodon.PathPublicTimeline, req
	case KindMastodonPublic:
		return mastodon.PathPublicTimeline, req
	case KindMastodonList:
		return mastodon.PathListTimeline(k.Param), req
	case KindMastodonHashTag:
		return mastodon.PathTagTimeline(k.Param), req
	case KindMastodonUser:
		return mastodon.PathAccountStatuses(k.Param), req
	}
	return "", req
}
