package timeline

import (
	"context"
	"sort"

	"github.com/pders01/fwtl/internal/api/mastodon"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
)

// favoriteItem is one favorite from either backend; exactly one field is set.
type favoriteItem struct {
	misskey  *misskey.Favorite
	mastodon *mastodon.Status
}

// favoriteSource pages favorites, whose cursors are not note ids. Misskey
// favorites are resolved through a note id to favorite id map; Mastodon
// favourites use the opaque ids from the Link header. Both live under mu.
type favoriteSource struct {
	*core
	adder     *notes.Adder
	accountID int64
	limit     int
	misskey   *misskey.Client
	mastodon  *mastodon.Client

	favoriteIDs     map[storage.NoteID]string
	mastodonSinceID string
	mastodonUntilID string
}

func (s *favoriteSource) SinceID() string {
	if s.mastodonSinceID != "" {
		return s.mastodonSinceID
	}
	if id, ok := s.headID(); ok {
		return s.favoriteIDs[id]
	}
	return ""
}

func (s *favoriteSource) UntilID() string {
	if s.mastodonUntilID != "" {
		return s.mastodonUntilID
	}
	if id, ok := s.tailID(); ok {
		return s.favoriteIDs[id]
	}
	return ""
}

func (s *favoriteSource) LoadFuture(ctx context.Context) ([]favoriteItem, error) {
	if s.misskey != nil {
		favs, err := s.misskey.Favorites(ctx, misskey.NotesRequest{Limit: s.limit, SinceID: s.SinceID()})
		if err != nil {
			return nil, err
		}
		return wrapMisskeyFavorites(favs), nil
	}

	page, err := s.mastodon.Favourites(ctx, mastodon.TimelineRequest{Limit: s.limit, MinID: s.SinceID()})
	if err != nil {
		return nil, err
	}
	if page.Link.MinID != "" {
		s.mastodonSinceID = page.Link.MinID
	}
	if s.mastodonUntilID == "" {
		s.mastodonUntilID = page.Link.MaxID
	}
	return wrapMastodonStatuses(page.Statuses), nil
}

func (s *favoriteSource) LoadPrevious(ctx context.Context) ([]favoriteItem, error) {
	if s.misskey != nil {
		favs, err := s.misskey.Favorites(ctx, misskey.NotesRequest{Limit: s.limit, UntilID: s.UntilID()})
		if err != nil {
			return nil, err
		}
		return wrapMisskeyFavorites(favs), nil
	}

	page, err := s.mastodon.Favourites(ctx, mastodon.TimelineRequest{Limit: s.limit, MaxID: s.UntilID()})
	if err != nil {
		return nil, err
	}
	if page.Link.MaxID != "" {
		s.mastodonUntilID = page.Link.MaxID
	}
	return wrapMastodonStatuses(page.Statuses), nil
}

// NewestFirst orders Misskey favorites by when they were favorited; Mastodon
// already answers newest first.
func (s *favoriteSource) NewestFirst(batch []favoriteItem) []favoriteItem {
	if s.misskey == nil {
		return batch
	}
	out := append([]favoriteItem(nil), batch...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].misskey, out[j].misskey
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func (s *favoriteSource) ConvertAll(_ context.Context, raw []favoriteItem) ([]storage.NoteID, error) {
	if s.misskey != nil {
		in := make([]misskey.Note, len(raw))
		for i, item := range raw {
			in[i] = item.misskey.Note
		}
		ids, err := s.adder.AddMisskey(s.accountID, in)
		if err != nil {
			return nil, err
		}
		for i, id := range ids {
			s.favoriteIDs[id] = raw[i].misskey.ID
		}
		return ids, nil
	}

	in := make([]mastodon.Status, len(raw))
	for i, item := range raw {
		in[i] = *item.mastodon
	}
	return s.adder.AddMastodon(s.accountID, in)
}

func (s *favoriteSource) resetCursors() {
	s.mastodonSinceID = ""
	s.mastodonUntilID = ""
}

func wrapMisskeyFavorites(favs []misskey.Favorite) []favoriteItem {
	out := make([]favoriteItem, len(favs))
	for i := range favs {
		out[i] = favoriteItem{misskey: &favs[i]}
	}
	return out
}

func wrapMastodonStatuses(statuses []mastodon.Status) []favoriteItem {
	out := make([]favoriteItem, len(statuses))
	for i := range statuses {
		out[i] = favoriteItem{mastodon: &statuses[i]}
	}
	return out
}
