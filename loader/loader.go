// Package loader iterates datasets in batches, optionally on a pool of worker
// goroutines.
package loader

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/neurlang/dataloader/datasets"
	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/rng"
	"github.com/neurlang/dataloader/sampler"
)

// ErrTimeout is returned when no batch arrives from the workers in time.
var ErrTimeout = errors.New("loader timed out")

// DatasetKind tells map style and iterable datasets apart.
type DatasetKind int

const (
	Map DatasetKind = iota
	Iterable
)

func (k DatasetKind) String() string {
	switch k {
	case Map:
		return "map"
	case Iterable:
		return "iterable"
	default:
		return fmt.Sprintf("DatasetKind(%d)", int(k))
	}
}

// Collate turns the samples of one batch into a batch value.
type Collate[T, B any] func(samples []T) (B, error)

// Stack is the identity collate: the batch is the slice of samples.
func Stack[T any](samples []T) ([]T, error) {
	return samples, nil
}

// GetWorkerInfo returns the info of the loader worker ctx belongs to, nil on
// the calling goroutine. Worker contexts reach WorkerInit and iterable
// datasets' Iter, never map style Get.
func GetWorkerInfo(ctx context.Context) *engine.WorkerInfo {
	return engine.WorkerInfoFrom(ctx)
}

// Loader yields batches of type B collated from samples of type T. Every call
// to Iter is one epoch.
type Loader[T, B any] struct {
	kind     DatasetKind
	dataset  datasets.Dataset[T]
	iterable datasets.IterableDataset[T]
	collate  Collate[T, B]
	opts     Options
	rt       *engine.Context
	log      *zap.Logger

	// map style index sources, batcher is nil when batching is disabled
	sampler sampler.Sampler
	batcher sampler.Batcher
}

func newLoader[T, B any](kind DatasetKind, collate Collate[T, B], opts Options) (*Loader[T, B], error) {
	if collate == nil {
		return nil, errors.New("collate function is required")
	}
	if err := opts.validate(kind); err != nil {
		return nil, err
	}
	l := &Loader[T, B]{
		kind:    kind,
		collate: collate,
		opts:    opts,
		rt:      engine.OrDefault(opts.Runtime),
	}
	l.log = opts.Logger
	if l.log == nil {
		l.log = l.rt.Logger()
	}
	return l, nil
}

// New returns a loader over a map style dataset.
func New[T, B any](d datasets.Dataset[T], collate Collate[T, B], opts Options) (*Loader[T, B], error) {
	l, err := newLoader(Map, collate, opts)
	if err != nil {
		return nil, err
	}
	l.dataset = d

	switch {
	case opts.Sampler != nil:
		l.sampler = opts.Sampler
	case opts.Shuffle:
		l.sampler, err = sampler.NewRandom(d.Len(), false, 0, opts.Generator)
		if err != nil {
			return nil, err
		}
	default:
		l.sampler = sampler.NewSequential(d.Len())
	}

	switch {
	case opts.BatchSampler != nil:
		l.batcher = opts.BatchSampler
	case !opts.DisableBatching:
		l.batcher, err = sampler.NewBatch(l.sampler, opts.batchSize(), opts.DropLast)
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}

// NewIterable returns a loader over an iterable dataset. With workers every
// worker iterates its own copy of the stream, datasets shard themselves using
// GetWorkerInfo.
func NewIterable[T, B any](d datasets.IterableDataset[T], collate Collate[T, B], opts Options) (*Loader[T, B], error) {
	l, err := newLoader(Iterable, collate, opts)
	if err != nil {
		return nil, err
	}
	l.iterable = d
	return l, nil
}

func (l *Loader[T, B]) Kind() DatasetKind {
	return l.kind
}

// Len is the number of batches of one epoch. Iterable datasets must implement
// datasets.Sized, and with workers the count ignores per worker tails.
func (l *Loader[T, B]) Len() (int, error) {
	if l.kind == Map {
		if l.batcher != nil {
			return l.batcher.Len(), nil
		}
		return l.sampler.Len(), nil
	}
	s, ok := l.iterable.(datasets.Sized)
	if !ok {
		return 0, datasets.ErrNotSized
	}
	n := s.Len()
	if l.opts.DisableBatching {
		return n, nil
	}
	bs := l.opts.batchSize()
	if l.opts.DropLast {
		return n / bs, nil
	}
	return (n + bs - 1) / bs, nil
}

func (l *Loader[T, B]) generator() *rng.Generator {
	if l.opts.Generator != nil {
		return l.opts.Generator
	}
	return l.rt.Generator()
}

// Iter runs one epoch. The determinism flag of the runtime is read once when
// the epoch starts: when set, batches come out in sampler order, otherwise in
// the order workers finish them. The epoch ends at the first error.
func (l *Loader[T, B]) Iter(ctx context.Context) iter.Seq2[B, error] {
	return func(yield func(B, error) bool) {
		deterministic := l.rt.Deterministic()
		baseSeed := l.generator().Uint64()

		l.log.Debug("loader epoch",
			zap.Stringer("kind", l.kind),
			zap.Int("workers", l.opts.NumWorkers),
			zap.Bool("deterministic", deterministic),
			zap.Uint64("base_seed", baseSeed))

		switch {
		case l.opts.NumWorkers == 0 && l.kind == Map:
			l.iterMapInline(ctx, yield)
		case l.opts.NumWorkers == 0:
			l.iterIterableInline(ctx, yield)
		case l.kind == Map:
			l.iterMapWorkers(ctx, deterministic, baseSeed, yield)
		default:
			l.iterIterableWorkers(ctx, deterministic, baseSeed, yield)
		}
	}
}

// tasks lists the index batches of one epoch.
func (l *Loader[T, B]) tasks() [][]int {
	if l.batcher != nil {
		return l.batcher.Batches()
	}
	indices := l.sampler.Indices()
	out := make([][]int, len(indices))
	for i := range indices {
		out[i] = indices[i : i+1 : i+1]
	}
	return out
}

// fetch reads and collates the samples at indices.
func (l *Loader[T, B]) fetch(indices []int) (B, error) {
	samples := make([]T, len(indices))
	for i, idx := range indices {
		s, err := l.dataset.Get(idx)
		if err != nil {
			var zero B
			return zero, fmt.Errorf("sample %d: %w", idx, err)
		}
		samples[i] = s
	}
	return l.collate(samples)
}

func (l *Loader[T, B]) iterMapInline(ctx context.Context, yield func(B, error) bool) {
	for _, indices := range l.tasks() {
		if err := ctx.Err(); err != nil {
			var zero B
			yield(zero, err)
			return
		}
		b, err := l.fetch(indices)
		if !yield(b, err) || err != nil {
			return
		}
	}
}

// batchStream collates an iterable stream into batches and passes each to
// emit until emit reports false.
func (l *Loader[T, B]) batchStream(ctx context.Context, emit func(B, error) bool) {
	size := l.opts.batchSize()
	if l.opts.DisableBatching {
		size = 1
	}
	buf := make([]T, 0, size)
	for s, err := range l.iterable.Iter(ctx) {
		if err != nil {
			var zero B
			emit(zero, err)
			return
		}
		buf = append(buf, s)
		if len(buf) == size {
			b, err := l.collate(buf)
			if !emit(b, err) || err != nil {
				return
			}
			buf = make([]T, 0, size)
		}
	}
	if len(buf) > 0 && !l.opts.DropLast {
		emit(l.collate(buf))
	}
}

func (l *Loader[T, B]) iterIterableInline(ctx context.Context, yield func(B, error) bool) {
	l.batchStream(ctx, yield)
}
