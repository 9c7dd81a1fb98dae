// Package pageable models the load status of an ordered list that is filled
// page by page: whether a fetch is in flight and in which direction, the
// last settled content, and the last failure.
package pageable

import (
	"context"
	"fmt"
)

type Status int

const (
	StatusLoadingInit Status = iota
	StatusLoadingPrevious
	StatusLoadingFuture
	StatusFixed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoadingInit:
		return "loading(init)"
	case StatusLoadingPrevious:
		return "loading(previous)"
	case StatusLoadingFuture:
		return "loading(future)"
	case StatusFixed:
		return "fixed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Content is either NotExist or Exist(items).
type Content[T any] struct {
	items []T
	exist bool
}

func NotExist[T any]() Content[T] {
	return Content[T]{}
}

// Exist wraps items; the slice is not copied and must not be mutated afterwards.
func Exist[T any](items []T) Content[T] {
	if items == nil {
		items = []T{}
	}
	return Content[T]{items: items, exist: true}
}

func (c Content[T]) Exists() bool { return c.exist }

// Items returns nil for NotExist.
func (c Content[T]) Items() []T { return c.items }

func (c Content[T]) Len() int { return len(c.items) }

// State is the tagged union. The zero value is Loading(Init).
type State[T any] struct {
	status  Status
	content Content[T]
	err     error
}

func Init[T any]() State[T] {
	return State[T]{status: StatusLoadingInit}
}

func LoadingPrevious[T any](content Content[T]) State[T] {
	return State[T]{status: StatusLoadingPrevious, content: content}
}

func LoadingFuture[T any](content Content[T]) State[T] {
	return State[T]{status: StatusLoadingFuture, content: content}
}

func Fixed[T any](content Content[T]) State[T] {
	return State[T]{status: StatusFixed, content: content}
}

func Error[T any](content Content[T], err error) State[T] {
	return State[T]{status: StatusError, content: content, err: err}
}

func (s State[T]) Status() Status      { return s.status }
func (s State[T]) Content() Content[T] { return s.content }

// Err is the cause of an Error state and nil otherwise.
func (s State[T]) Err() error { return s.err }

func (s State[T]) IsLoading() bool {
	return s.status == StatusLoadingInit || s.status == StatusLoadingPrevious || s.status == StatusLoadingFuture
}

func (s State[T]) IsFixed() bool { return s.status == StatusFixed }
func (s State[T]) IsError() bool { return s.status == StatusError }

// GetOrNil returns the items of an Exist content, otherwise nil.
func (s State[T]) GetOrNil() []T {
	return s.content.Items()
}

func (s State[T]) String() string {
	if !s.content.exist {
		return fmt.Sprintf("%s(not exist)", s.status)
	}
	return fmt.Sprintf("%s(%d items)", s.status, len(s.content.items))
}

// withContent keeps the tag and error of s.
func withContent[T, R any](s State[T], c Content[R]) State[R] {
	return State[R]{status: s.status, content: c, err: s.err}
}

// Map converts the items, preserving the status tag.
func Map[T, R any](s State[T], fn func([]T) []R) State[R] {
	if !s.content.exist {
		return withContent(s, NotExist[R]())
	}
	return withContent(s, Exist(fn(s.content.items)))
}

// Convert is Map with a blocking, fallible conversion. A failed conversion
// turns the state into Error(NotExist, err): the previous content has type
// T and cannot stand in for an R list.
func Convert[T, R any](ctx context.Context, s State[T], fn func(context.Context, []T) ([]R, error)) State[R] {
	if !s.content.exist {
		return withContent(s, NotExist[R]())
	}
	out, err := fn(ctx, s.content.items)
	if err != nil {
		return Error(NotExist[R](), err)
	}
	return withContent(s, Exist(out))
}

// Equal reports whether a and b carry the same tag, error and items.
func Equal[T comparable](a, b State[T]) bool {
	if a.status != b.status || a.err != b.err || a.content.exist != b.content.exist {
		return false
	}
	if len(a.content.items) != len(b.content.items) {
		return false
	}
	for i := range a.content.items {
		if a.content.items[i] != b.content.items[i] {
			return false
		}
	}
	return true
}
