package timeline

import (
	"context"

	"github.com/pders01/fwtl/internal/pageable"
	"github.com/pders01/fwtl/internal/storage"
)

// NotesState is a timeline with its ids resolved to cached notes.
type NotesState = pageable.State[*storage.Note]

// NoteGetter resolves ids in order and skips unknown ones;
// *storage.NoteDataSource satisfies it.
type NoteGetter interface {
	GetIn(ids []storage.NoteID) []*storage.Note
}

// ResolveNotes converts s into the notes it names, keeping its tag. Ids
// notes does not know yet are left out. When ctx is already done the
// result is Error with no content.
func ResolveNotes(ctx context.Context, s NoteState, notes NoteGetter) NotesState {
	return pageable.Convert(ctx, s, func(ctx context.Context, ids []storage.NoteID) ([]*storage.Note, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return notes.GetIn(dedupe(ids)), nil
	})
}

func dedupe(ids []storage.NoteID) []storage.NoteID {
	seen := make(map[storage.NoteID]struct{}, len(ids))
	out := make([]storage.NoteID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Notes returns the current state with its ids resolved through the
// store's note data source.
func (s *Store) Notes(ctx context.Context) NotesState {
	return ResolveNotes(ctx, s.State(), s.notes)
}
