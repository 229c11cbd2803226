// Package datasets implements map style and iterable datasets and the
// combinators that compose them.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotSized        = errors.New("dataset has no length")
)

// Dataset is a map style dataset: samples are addressed by index in [0, Len()).
type Dataset[T any] interface {
	Get(n int) (T, error)
	Len() int
}

// IterableDataset is a stream of samples. A non-nil error ends the stream.
// Loader workers pass a context carrying engine.WorkerInfo so implementations
// can shard themselves.
type IterableDataset[T any] interface {
	Iter(ctx context.Context) iter.Seq2[T, error]
}

// Sized is implemented by iterable datasets that know their length.
type Sized interface {
	Len() int
}

func checkIndex(n, length int) error {
	if n < 0 || n >= length {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, n, length)
	}
	return nil
}

// Slice is an in memory dataset. It is both map style and iterable.
type Slice[T any] []T

func (s Slice[T]) Get(n int) (T, error) {
	if err := checkIndex(n, len(s)); err != nil {
		var zero T
		return zero, err
	}
	return s[n], nil
}

func (s Slice[T]) Len() int {
	return len(s)
}

func (s Slice[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, v := range s {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

type funcDataset[T any] struct {
	n  int
	fn func(n int) (T, error)
}

// FromFunc returns a dataset of length n whose samples are computed by fn.
func FromFunc[T any](n int, fn func(n int) (T, error)) Dataset[T] {
	return funcDataset[T]{n: n, fn: fn}
}

func (f funcDataset[T]) Get(n int) (T, error) {
	if err := checkIndex(n, f.n); err != nil {
		var zero T
		return zero, err
	}
	return f.fn(n)
}

func (f funcDataset[T]) Len() int {
	return f.n
}

// IterFunc adapts a function to IterableDataset.
type IterFunc[T any] func(ctx context.Context) iter.Seq2[T, error]

func (f IterFunc[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return f(ctx)
}
