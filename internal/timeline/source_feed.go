package timeline

import (
	"context"

	"github.com/pders01/fwtl/internal/feed"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
)

// feedSource pages an RSS/Atom profile feed. A feed is a single window of
// recent entries, so there is nothing before its oldest entry.
type feedSource struct {
	*core
	fetcher   *feed.Fetcher
	adder     *notes.Adder
	accountID int64
	url       string
}

func (s *feedSource) SinceID() string {
	if id, ok := s.headID(); ok {
		return id.NoteID
	}
	return ""
}

func (s *feedSource) UntilID() string {
	if id, ok := s.tailID(); ok {
		return id.NoteID
	}
	return ""
}

func (s *feedSource) LoadFuture(ctx context.Context) ([]*feed.Item, error) {
	items, updated, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil || !updated {
		return nil, err
	}
	return items, nil
}

func (s *feedSource) LoadPrevious(context.Context) ([]*feed.Item, error) {
	return nil, nil
}

func (s *feedSource) ConvertAll(_ context.Context, raw []*feed.Item) ([]storage.NoteID, error) {
	return s.adder.AddFeedItems(s.accountID, raw)
}

func (s *feedSource) resetCursors() {
	s.fetcher.Forget(s.url)
}
