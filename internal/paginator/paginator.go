// Package paginator drives one bidirectional fetch cycle over an ordered,
// newest-first list: lock, mark loading, fetch, convert, merge without
// duplicates, settle, unlock.
package paginator

import (
	"context"
	"errors"

	"github.com/pders01/fwtl/internal/pageable"
)

// StateLocker exposes the mutex that guards a PaginationState.
type StateLocker interface {
	Mutex() *Mutex
}

// PaginationState is read and written only while the StateLocker's mutex is held.
type PaginationState[E any] interface {
	State() pageable.State[E]
	SetState(pageable.State[E])
}

// IDGetter yields backend cursors. An empty string means "no cursor": the
// loader then fetches the most recent page.
type IDGetter interface {
	SinceID() string
	UntilID() string
}

// Settler is optionally implemented by a PaginationState. Settled runs after
// a successful load has stored its merged list, with the mutex still held.
type Settler interface {
	Settled(future bool, added int)
}

type FutureLoader[R any] interface {
	LoadFuture(ctx context.Context) ([]R, error)
}

type PreviousLoader[R any] interface {
	LoadPrevious(ctx context.Context) ([]R, error)
}

// EntityConverter registers raw items in the shared entity store and returns
// exactly one identifier per input, in input order.
type EntityConverter[R, E any] interface {
	ConvertAll(ctx context.Context, raw []R) ([]E, error)
}

// Orderer is implemented by loaders whose batches arrive in backend order.
// Controllers use it to put a batch newest-first before merging.
type Orderer[R any] interface {
	NewestFirst(batch []R) []R
}

// IsCancellation reports whether err stems from the caller giving up rather
// than from the backend.
func IsCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() != nil
}

// MergeFuture puts the unseen ids of incoming (already newest-first) in front
// of existing. Ids already present are dropped from the batch, never moved.
func MergeFuture[E comparable](existing, incoming []E) ([]E, int) {
	fresh := unseen(existing, incoming)
	merged := make([]E, 0, len(fresh)+len(existing))
	merged = append(merged, fresh...)
	merged = append(merged, existing...)
	return merged, len(fresh)
}

// MergePrevious appends the unseen ids of incoming after existing.
func MergePrevious[E comparable](existing, incoming []E) ([]E, int) {
	fresh := unseen(existing, incoming)
	merged := make([]E, 0, len(fresh)+len(existing))
	merged = append(merged, existing...)
	merged = append(merged, fresh...)
	return merged, len(fresh)
}

func unseen[E comparable](existing, incoming []E) []E {
	seen := make(map[E]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		seen[e] = struct{}{}
	}
	out := make([]E, 0, len(incoming))
	for _, e := range incoming {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
