package pageable

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroValueIsInit(t *testing.T) {
	var s State[int]

	assert.Equal(t, StatusLoadingInit, s.Status())
	assert.True(t, s.IsLoading())
	assert.False(t, s.Content().Exists())
	assert.Nil(t, s.GetOrNil())
	assert.True(t, Equal(s, Init[int]()))
}

func TestConstructors(t *testing.T) {
	c := Exist([]string{"a", "b"})
	cause := errors.New("boom")

	tests := []struct {
		name    string
		state   State[string]
		status  Status
		loading bool
	}{
		{"previous", LoadingPrevious(c), StatusLoadingPrevious, true},
		{"future", LoadingFuture(c), StatusLoadingFuture, true},
		{"fixed", Fixed(c), StatusFixed, false},
		{"error", Error(c, cause), StatusError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.state.Status())
			assert.Equal(t, tt.loading, tt.state.IsLoading())
			assert.Equal(t, []string{"a", "b"}, tt.state.GetOrNil())
		})
	}

	assert.Same(t, cause, Error(c, cause).Err())
	assert.Nil(t, Fixed(c).Err())
}

func TestExistNilIsEmptyNotMissing(t *testing.T) {
	c := Exist[int](nil)
	assert.True(t, c.Exists())
	assert.Equal(t, 0, c.Len())
	assert.NotNil(t, c.Items())
}

func TestMapPreservesTag(t *testing.T) {
	cause := errors.New("offline")
	s := Error(Exist([]int{1, 2}), cause)

	out := Map(s, func(in []int) []string {
		res := make([]string, len(in))
		for i, v := range in {
			res[i] = strconv.Itoa(v)
		}
		return res
	})

	assert.Equal(t, StatusError, out.Status())
	assert.Same(t, cause, out.Err())
	assert.Equal(t, []string{"1", "2"}, out.GetOrNil())

	missing := Map(Fixed(NotExist[int]()), func(in []int) []string { t.Fatal("must not be called"); return nil })
	assert.False(t, missing.Content().Exists())
	assert.True(t, missing.IsFixed())
}

func TestConvert(t *testing.T) {
	ctx := context.Background()

	ok := Convert(ctx, LoadingFuture(Exist([]int{3})), func(_ context.Context, in []int) ([]int, error) {
		return []int{in[0] * 2}, nil
	})
	assert.Equal(t, StatusLoadingFuture, ok.Status())
	assert.Equal(t, []int{6}, ok.GetOrNil())

	cause := errors.New("lookup failed")
	failed := Convert(ctx, Fixed(Exist([]int{3})), func(context.Context, []int) ([]int, error) {
		return nil, cause
	})
	assert.True(t, failed.IsError())
	assert.ErrorIs(t, failed.Err(), cause)
	assert.False(t, failed.Content().Exists(), "a failed conversion has no content")
}

func TestEqual(t *testing.T) {
	a := Fixed(Exist([]int{1, 2}))

	assert.True(t, Equal(a, Fixed(Exist([]int{1, 2}))))
	assert.False(t, Equal(a, Fixed(Exist([]int{2, 1}))))
	assert.False(t, Equal(a, LoadingFuture(Exist([]int{1, 2}))))
	assert.False(t, Equal(Fixed(NotExist[int]()), Fixed(Exist([]int{}))))
}

func TestString(t *testing.T) {
	assert.Equal(t, "loading(init)(not exist)", Init[int]().String())
	assert.Equal(t, "fixed(2 items)", Fixed(Exist([]int{1, 2})).String())
}
