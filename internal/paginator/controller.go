package paginator

import (
	"context"
	"fmt"

	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/pageable"
)

type direction int

const (
	directionFuture direction = iota
	directionPrevious
)

func (d direction) String() string {
	if d == directionFuture {
		return "future"
	}
	return "previous"
}

// cycle holds what both controllers share; only the loader and the merge differ.
type cycle[R any, E comparable] struct {
	locker    StateLocker
	state     PaginationState[E]
	converter EntityConverter[R, E]
}

func (c cycle[R, E]) run(ctx context.Context, dir direction, load func(context.Context) ([]R, error), orderer any) (int, error) {
	mu := c.locker.Mutex()
	if err := mu.Lock(ctx); err != nil {
		return 0, err
	}
	defer mu.Unlock()

	prev := c.state.State()
	if dir == directionFuture {
		c.state.SetState(pageable.LoadingFuture(prev.Content()))
	} else {
		c.state.SetState(pageable.LoadingPrevious(prev.Content()))
	}

	raw, err := load(ctx)
	if err != nil {
		return 0, c.fail(ctx, dir, prev, fmt.Errorf("loading %s page: %w", dir, err))
	}
	if o, ok := orderer.(Orderer[R]); ok {
		raw = o.NewestFirst(raw)
	}

	ids, err := c.converter.ConvertAll(ctx, raw)
	if err != nil {
		return 0, c.fail(ctx, dir, prev, fmt.Errorf("converting %s page: %w", dir, err))
	}

	var merged []E
	var added int
	if dir == directionFuture {
		merged, added = MergeFuture(prev.Content().Items(), ids)
	} else {
		merged, added = MergePrevious(prev.Content().Items(), ids)
	}
	c.state.SetState(pageable.Fixed(pageable.Exist(merged)))
	if s, ok := c.state.(Settler); ok {
		s.Settled(dir == directionFuture, added)
	}

	debuglog.Debugf("paging %s: fetched=%d added=%d total=%d", dir, len(raw), added, len(merged))
	return added, nil
}

// fail settles the state after an unsuccessful fetch. Cancellation restores
// the state as it was before the call; anything else becomes Error with the
// previous content.
func (c cycle[R, E]) fail(ctx context.Context, dir direction, prev pageable.State[E], err error) error {
	if IsCancellation(ctx, err) {
		c.state.SetState(prev)
		debuglog.Debugf("paging %s canceled: %v", dir, err)
		return err
	}
	c.state.SetState(pageable.Error(prev.Content(), err))
	debuglog.Warnf("paging %s failed: %v", dir, err)
	return err
}

type FuturePagingController[R any, E comparable] struct {
	cycle  cycle[R, E]
	loader FutureLoader[R]
}

func NewFuturePagingController[R any, E comparable](
	locker StateLocker,
	state PaginationState[E],
	loader FutureLoader[R],
	converter EntityConverter[R, E],
) *FuturePagingController[R, E] {
	return &FuturePagingController[R, E]{
		cycle:  cycle[R, E]{locker: locker, state: state, converter: converter},
		loader: loader,
	}
}

// LoadFuture fetches items newer than the current head and prepends the
// unseen ones. It returns how many ids were added.
func (c *FuturePagingController[R, E]) LoadFuture(ctx context.Context) (int, error) {
	return c.cycle.run(ctx, directionFuture, c.loader.LoadFuture, c.loader)
}

type PreviousPagingController[R any, E comparable] struct {
	cycle  cycle[R, E]
	loader PreviousLoader[R]
}

func NewPreviousPagingController[R any, E comparable](
	locker StateLocker,
	state PaginationState[E],
	loader PreviousLoader[R],
	converter EntityConverter[R, E],
) *PreviousPagingController[R, E] {
	return &PreviousPagingController[R, E]{
		cycle:  cycle[R, E]{locker: locker, state: state, converter: converter},
		loader: loader,
	}
}

// LoadPrevious fetches items older than the current tail and appends the
// unseen ones. It returns how many ids were added.
func (c *PreviousPagingController[R, E]) LoadPrevious(ctx context.Context) (int, error) {
	return c.cycle.run(ctx, directionPrevious, c.loader.LoadPrevious, c.loader)
}
