// Package datapipes composes iterable datasets. Every pipe is an
// IterDataPipe and can be chained by name through a Registry.
package datapipes

import (
	"context"
	"iter"

	"github.com/neurlang/dataloader/datasets"
	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/rng"
)

// IterDataPipe is an iterable dataset.
type IterDataPipe[T any] = datasets.IterableDataset[T]

type mapPipe[T, U any] struct {
	src IterDataPipe[T]
	fn  func(T) (U, error)
}

// Map applies fn to every item of src.
func Map[T, U any](src IterDataPipe[T], fn func(T) (U, error)) IterDataPipe[U] {
	return mapPipe[T, U]{src: src, fn: fn}
}

func (m mapPipe[T, U]) Iter(ctx context.Context) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		for v, err := range m.src.Iter(ctx) {
			var u U
			if err == nil {
				u, err = m.fn(v)
			}
			if !yield(u, err) || err != nil {
				return
			}
		}
	}
}

type filterPipe[T any] struct {
	src  IterDataPipe[T]
	keep func(T) bool
}

// Filter drops the items keep rejects.
func Filter[T any](src IterDataPipe[T], keep func(T) bool) IterDataPipe[T] {
	return filterPipe[T]{src: src, keep: keep}
}

func (f filterPipe[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range f.src.Iter(ctx) {
			if err != nil {
				yield(v, err)
				return
			}
			if f.keep(v) && !yield(v, nil) {
				return
			}
		}
	}
}

type batchPipe[T any] struct {
	src      IterDataPipe[T]
	size     int
	dropLast bool
}

// Batch groups items into slices of size. It panics if size <= 0.
func Batch[T any](src IterDataPipe[T], size int, dropLast bool) IterDataPipe[[]T] {
	if size <= 0 {
		panic("datapipes: batch size must be positive")
	}
	return batchPipe[T]{src: src, size: size, dropLast: dropLast}
}

func (b batchPipe[T]) Iter(ctx context.Context) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		buf := make([]T, 0, b.size)
		for v, err := range b.src.Iter(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			buf = append(buf, v)
			if len(buf) == b.size {
				if !yield(buf, nil) {
					return
				}
				buf = make([]T, 0, b.size)
			}
		}
		if len(buf) > 0 && !b.dropLast {
			yield(buf, nil)
		}
	}
}

type shufflePipe[T any] struct {
	src    IterDataPipe[T]
	buffer int
	gen    *rng.Generator
}

// Shuffle keeps a buffer of items and yields a random one each time it fills
// up. Inside a loader worker it draws from the worker generator unless g is
// set, so worker streams stay reproducible.
func Shuffle[T any](src IterDataPipe[T], buffer int, g *rng.Generator) IterDataPipe[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return shufflePipe[T]{src: src, buffer: buffer, gen: g}
}

func (s shufflePipe[T]) generator(ctx context.Context) *rng.Generator {
	if s.gen != nil {
		return s.gen
	}
	if info := engine.WorkerInfoFrom(ctx); info != nil && info.Generator != nil {
		return info.Generator
	}
	return rng.Default().Fork()
}

func (s shufflePipe[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		g := s.generator(ctx)
		buf := make([]T, 0, s.buffer)
		for v, err := range s.src.Iter(ctx) {
			if err != nil {
				yield(v, err)
				return
			}
			if len(buf) < s.buffer {
				buf = append(buf, v)
				continue
			}
			i := g.Intn(len(buf))
			out := buf[i]
			buf[i] = v
			if !yield(out, nil) {
				return
			}
		}
		g.Shuffle(len(buf), func(i, j int) { buf[i], buf[j] = buf[j], buf[i] })
		for _, v := range buf {
			if !yield(v, nil) {
				return
			}
		}
	}
}

type shardingPipe[T any] struct {
	src IterDataPipe[T]
}

// ShardingFilter keeps every NumWorkers-th item starting at the worker ID, so
// loader workers see disjoint shards. Outside a worker it passes everything.
func ShardingFilter[T any](src IterDataPipe[T]) IterDataPipe[T] {
	return shardingPipe[T]{src: src}
}

func (s shardingPipe[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		id, n := 0, 1
		if info := engine.WorkerInfoFrom(ctx); info != nil {
			id, n = info.ID, info.NumWorkers
		}
		i := 0
		for v, err := range s.src.Iter(ctx) {
			if err != nil {
				yield(v, err)
				return
			}
			if i%n == id && !yield(v, nil) {
				return
			}
			i++
		}
	}
}
