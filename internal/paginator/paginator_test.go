package paginator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/fwtl/internal/pageable"
)

// fakeSource plays every paging role with string ids.
type fakeSource struct {
	mu       *Mutex
	state    pageable.State[string]
	future   func(ctx context.Context) ([]string, error)
	previous func(ctx context.Context) ([]string, error)
	convErr  error
	observed []pageable.State[string]
}

func newFakeSource() *fakeSource {
	return &fakeSource{mu: NewMutex(), state: pageable.Init[string]()}
}

func (f *fakeSource) Mutex() *Mutex                     { return f.mu }
func (f *fakeSource) State() pageable.State[string]     { return f.state }
func (f *fakeSource) SetState(s pageable.State[string]) { f.state = s; f.observed = append(f.observed, s) }
func (f *fakeSource) LoadFuture(ctx context.Context) ([]string, error) {
	return f.future(ctx)
}
func (f *fakeSource) LoadPrevious(ctx context.Context) ([]string, error) {
	return f.previous(ctx)
}
func (f *fakeSource) ConvertAll(_ context.Context, raw []string) ([]string, error) {
	if f.convErr != nil {
		return nil, f.convErr
	}
	return raw, nil
}

func batch(items ...string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) { return items, nil }
}

func controllers(src *fakeSource) (*FuturePagingController[string, string], *PreviousPagingController[string, string]) {
	return NewFuturePagingController[string, string](src, src, src, src),
		NewPreviousPagingController[string, string](src, src, src, src)
}

func TestMergeFuture(t *testing.T) {
	merged, added := MergeFuture([]string{"A", "B"}, []string{"X", "A", "Y", "X"})
	assert.Equal(t, []string{"X", "Y", "A", "B"}, merged)
	assert.Equal(t, 2, added)

	merged, added = MergeFuture(nil, []string{"A"})
	assert.Equal(t, []string{"A"}, merged)
	assert.Equal(t, 1, added)
}

func TestMergePrevious(t *testing.T) {
	merged, added := MergePrevious([]string{"A", "B"}, []string{"B", "C", "D"})
	assert.Equal(t, []string{"A", "B", "C", "D"}, merged)
	assert.Equal(t, 2, added)

	merged, added = MergePrevious([]string{"A"}, nil)
	assert.Equal(t, []string{"A"}, merged)
	assert.Zero(t, added)
}

func TestLoadFutureThenPrevious(t *testing.T) {
	src := newFakeSource()
	future, previous := controllers(src)
	ctx := context.Background()

	src.future = batch("A", "B", "C")
	added, err := future.LoadFuture(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.True(t, src.state.IsFixed())
	assert.Equal(t, []string{"A", "B", "C"}, src.state.GetOrNil())

	// Loading(Future) carried the old (empty) content while in flight.
	require.GreaterOrEqual(t, len(src.observed), 2)
	assert.Equal(t, pageable.StatusLoadingFuture, src.observed[0].Status())

	src.previous = batch("C", "X", "Y")
	added, err = previous.LoadPrevious(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"A", "B", "C", "X", "Y"}, src.state.GetOrNil())

	src.future = batch("Z", "A")
	added, err = future.LoadFuture(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"Z", "A", "B", "C", "X", "Y"}, src.state.GetOrNil())
}

func TestLoadFailureKeepsPreviousContent(t *testing.T) {
	src := newFakeSource()
	future, previous := controllers(src)
	ctx := context.Background()

	src.future = batch("A", "B")
	_, err := future.LoadFuture(ctx)
	require.NoError(t, err)

	cause := errors.New("503 service unavailable")
	src.future = func(context.Context) ([]string, error) { return nil, cause }
	added, err := future.LoadFuture(ctx)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, added)
	assert.True(t, src.state.IsError())
	assert.ErrorIs(t, src.state.Err(), cause)
	assert.Equal(t, []string{"A", "B"}, src.state.GetOrNil())

	src.previous = batch("C")
	src.convErr = errors.New("decode")
	_, err = previous.LoadPrevious(ctx)
	assert.Error(t, err)
	assert.True(t, src.state.IsError())
	assert.Equal(t, []string{"A", "B"}, src.state.GetOrNil())
}

func TestLoadFailureFromInitHasNoContent(t *testing.T) {
	src := newFakeSource()
	future, _ := controllers(src)

	src.future = func(context.Context) ([]string, error) { return nil, errors.New("dns") }
	_, err := future.LoadFuture(context.Background())
	require.Error(t, err)
	assert.True(t, src.state.IsError())
	assert.False(t, src.state.Content().Exists())
}

func TestCancellationRestoresState(t *testing.T) {
	src := newFakeSource()
	future, _ := controllers(src)

	src.future = batch("A")
	_, err := future.LoadFuture(context.Background())
	require.NoError(t, err)
	before := src.state

	ctx, cancel := context.WithCancel(context.Background())
	src.future = func(ctx context.Context) ([]string, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err = future.LoadFuture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, pageable.Equal(before, src.state), "state must not be stuck in loading nor become error")

	// The mutex was released.
	assert.True(t, src.mu.TryLock())
	src.mu.Unlock()
}

func TestLockAcquisitionRespectsContext(t *testing.T) {
	src := newFakeSource()
	future, _ := controllers(src)
	require.NoError(t, src.mu.Lock(context.Background()))
	defer src.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	src.future = func(context.Context) ([]string, error) {
		t.Fatal("loader must not run without the lock")
		return nil, nil
	}
	_, err := future.LoadFuture(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type orderedSource struct {
	*fakeSource
}

// NewestFirst reverses, as for a backend answering sinceId queries ascending.
func (o orderedSource) NewestFirst(b []string) []string {
	out := make([]string, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func TestOrdererNormalizesBatch(t *testing.T) {
	src := orderedSource{newFakeSource()}
	src.future = batch("C", "B", "A")

	future := NewFuturePagingController[string, string](src, src, src, src)
	_, err := future.LoadFuture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, src.state.GetOrNil())
}

func TestConcurrentLoadsDoNotInterleave(t *testing.T) {
	src := newFakeSource()
	future, previous := controllers(src)

	var startsMu sync.Mutex
	var seenAtStart [][]string

	record := func() {
		startsMu.Lock()
		seenAtStart = append(seenAtStart, append([]string(nil), src.state.GetOrNil()...))
		startsMu.Unlock()
	}

	src.future = func(context.Context) ([]string, error) {
		record()
		time.Sleep(30 * time.Millisecond)
		return []string{"F"}, nil
	}
	src.previous = func(context.Context) ([]string, error) {
		record()
		time.Sleep(30 * time.Millisecond)
		return []string{"P"}, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = future.LoadFuture(context.Background()) }()
	go func() { defer wg.Done(); _, _ = previous.LoadPrevious(context.Background()) }()
	wg.Wait()

	require.Len(t, seenAtStart, 2)
	// Whichever ran second saw the first one's settled content.
	assert.Empty(t, seenAtStart[0])
	assert.Len(t, seenAtStart[1], 1)
	assert.ElementsMatch(t, []string{"F", "P"}, src.state.GetOrNil())
	assert.True(t, src.state.IsFixed())
}

func TestMutexWithLockReleasesOnPanic(t *testing.T) {
	m := NewMutex()

	assert.Panics(t, func() {
		_ = m.WithLock(context.Background(), func() error { panic("boom") })
	})
	assert.True(t, m.TryLock())
	m.Unlock()
}

func TestIsCancellation(t *testing.T) {
	ctx := context.Background()
	assert.True(t, IsCancellation(ctx, context.Canceled))
	assert.True(t, IsCancellation(ctx, errors.Join(errors.New("x"), context.DeadlineExceeded)))
	assert.False(t, IsCancellation(ctx, errors.New("connection refused")))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.True(t, IsCancellation(canceled, errors.New("read: connection reset")))
}

type settlingSource struct {
	*fakeSource
	settled []string
}

func (s *settlingSource) Settled(future bool, added int) {
	// The hook runs inside the critical section.
	if s.mu.TryLock() {
		s.mu.Unlock()
		s.settled = append(s.settled, "unlocked")
		return
	}
	dir := "previous"
	if future {
		dir = "future"
	}
	s.settled = append(s.settled, fmt.Sprintf("%s:%d", dir, added))
}

func TestSettlerRunsUnderLockOnSuccessOnly(t *testing.T) {
	src := &settlingSource{fakeSource: newFakeSource()}
	future := NewFuturePagingController[string, string](src, src, src, src)
	previous := NewPreviousPagingController[string, string](src, src, src, src)
	ctx := context.Background()

	src.future = batch("A", "B")
	_, err := future.LoadFuture(ctx)
	require.NoError(t, err)

	src.previous = batch("B", "C")
	_, err = previous.LoadPrevious(ctx)
	require.NoError(t, err)

	src.future = func(context.Context) ([]string, error) { return nil, errors.New("boom") }
	_, err = future.LoadFuture(ctx)
	require.Error(t, err)

	assert.Equal(t, []string{"future:2", "previous:1"}, src.settled)
}
