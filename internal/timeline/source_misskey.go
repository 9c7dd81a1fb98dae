package timeline

import (
	"context"
	"sort"

	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
)

// misskeySource pages any Misskey note listing by note id.
type misskeySource struct {
	*core
	client    *misskey.Client
	adder     *notes.Adder
	accountID int64
	endpoint  string
	base      misskey.NotesRequest
}

func (s *misskeySource) SinceID() string {
	if id, ok := s.headID(); ok {
		return id.NoteID
	}
	return ""
}

func (s *misskeySource) UntilID() string {
	if id, ok := s.tailID(); ok {
		return id.NoteID
	}
	return ""
}

// LoadFuture jumps to the pending initial-load position while the timeline
// is empty, and otherwise asks for notes newer than the head.
func (s *misskeySource) LoadFuture(ctx context.Context) ([]misskey.Note, error) {
	req := s.base
	req.SinceID = s.SinceID()
	if req.SinceID == "" {
		s.applyQuery(&req)
	}
	return s.client.Notes(ctx, s.endpoint, req)
}

func (s *misskeySource) LoadPrevious(ctx context.Context) ([]misskey.Note, error) {
	req := s.base
	req.UntilID = s.UntilID()
	if req.UntilID == "" {
		s.applyQuery(&req)
	}
	return s.client.Notes(ctx, s.endpoint, req)
}

// applyQuery copies the pending query's position into req.
func (s *misskeySource) applyQuery(req *misskey.NotesRequest) {
	q := s.pendingQuery()
	if q.empty() {
		return
	}
	applied := false
	if q.UntilID != "" {
		req.UntilID = q.UntilID
		applied = true
	}
	if !q.UntilDate.IsZero() {
		if s.client.Version().SupportsUntilDate() {
			req.UntilDate = q.UntilDate.UnixMilli()
			applied = true
		} else {
			debuglog.Warnf("misskey %s does not support untilDate, loading latest instead", s.client.Version())
		}
	}
	if applied {
		s.markQueryApplied()
	}
}

// NewestFirst undoes the ascending order Misskey uses for sinceId queries.
func (s *misskeySource) NewestFirst(batch []misskey.Note) []misskey.Note {
	out := append([]misskey.Note(nil), batch...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *misskeySource) ConvertAll(_ context.Context, raw []misskey.Note) ([]storage.NoteID, error) {
	return s.adder.AddMisskey(s.accountID, raw)
}

func misskeyRequest(k Kind, limit int) (string, misskey.NotesRequest) {
	req := misskey.NotesRequest{Limit: limit, WithFiles: k.OnlyMedia}
	switch k.Type {
	case KindHome:
		return misskey.EndpointHomeTimeline, req
	case KindLocal:
		return misskey.EndpointLocalTimeline, req
	case KindSocial:
		return misskey.EndpointHybridTimeline, req
	case KindGlobal:
		return misskey.EndpointGlobalTimeline, req
	case KindUserList:
		req.ListID = k.Param
		return misskey.EndpointUserListTimeline, req
	case KindAntenna:
		req.AntennaID = k.Param
		return misskey.EndpointAntennaNotes, req
	case KindChannel:
		req.ChannelID = k.Param
		return misskey.EndpointChannelTimeline, req
	case KindUser:
		req.UserID = k.Param
		return misskey.EndpointUserNotes, req
	case KindSearch:
		req.Query = k.Param
		req.WithFiles = false
		return misskey.EndpointSearch, req
	}
	return "", req
}
