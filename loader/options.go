package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/rng"
	"github.com/neurlang/dataloader/sampler"
)

// DefaultPrefetchFactor is the number of batches each worker keeps in flight
// when Options.PrefetchFactor is zero.
const DefaultPrefetchFactor = 2

// Options mirror the knobs of the loader. The zero value loads one sample per
// batch, in order, on the calling goroutine.
type Options struct {
	// BatchSize of automatic batching, 0 means 1.
	BatchSize int
	// DisableBatching hands every sample to the collate function on its own.
	DisableBatching bool
	// Shuffle draws a new random order every epoch. Map style only.
	Shuffle bool
	// Sampler overrides the index order. Map style only.
	Sampler sampler.Sampler
	// BatchSampler overrides the index batches. Map style only.
	BatchSampler sampler.Batcher
	// DropLast drops the final short batch.
	DropLast bool

	// NumWorkers is the number of worker goroutines, 0 loads inline.
	NumWorkers int
	// PrefetchFactor is the number of batches queued per worker.
	PrefetchFactor int
	// Timeout bounds the wait for a single batch from the workers.
	Timeout time.Duration
	// WorkerInit runs on every worker before it loads anything. The context
	// carries the worker's engine.WorkerInfo. Map style Get takes no context,
	// so this is the only place a map style worker sees its info.
	WorkerInit func(ctx context.Context) error

	// Generator seeds shuffling and workers, the runtime generator if nil.
	Generator *rng.Generator
	// Runtime supplies the determinism flag, engine.Default if nil.
	Runtime *engine.Context
	// Logger overrides the runtime logger.
	Logger *zap.Logger
}

func (o *Options) validate(kind DatasetKind) error {
	if o.BatchSize < 0 {
		return fmt.Errorf("batch_size should be a non-negative integer value, but got batch_size=%d", o.BatchSize)
	}
	if o.NumWorkers < 0 {
		return errors.New("num_workers option should be non-negative; use num_workers=0 to disable multiprocessing")
	}
	if o.Timeout < 0 {
		return errors.New("timeout option should be non-negative")
	}
	if o.PrefetchFactor < 0 {
		return fmt.Errorf("prefetch_factor option should be non-negative, but got %d", o.PrefetchFactor)
	}
	if o.NumWorkers == 0 && o.PrefetchFactor != 0 {
		return errors.New("prefetch_factor option could only be specified in multiprocessing, let num_workers > 0 to enable multiprocessing")
	}

	if kind == Iterable {
		if o.Shuffle {
			return errors.New("loader with an iterable dataset: expected unspecified shuffle option, but got shuffle=true")
		}
		if o.Sampler != nil {
			return errors.New("loader with an iterable dataset: expected unspecified sampler option")
		}
		if o.BatchSampler != nil {
			return errors.New("loader with an iterable dataset: expected unspecified batch_sampler option")
		}
	}

	if o.Sampler != nil && o.Shuffle {
		return errors.New("sampler option is mutually exclusive with shuffle")
	}
	if o.BatchSampler != nil && (o.BatchSize > 1 || o.Shuffle || o.Sampler != nil || o.DropLast || o.DisableBatching) {
		return errors.New("batch_sampler option is mutually exclusive with batch_size, shuffle, sampler, and drop_last")
	}
	if o.DisableBatching && o.DropLast {
		return errors.New("disabling automatic batching is mutually exclusive with drop_last")
	}
	return nil
}

func (o *Options) batchSize() int {
	if o.BatchSize == 0 {
		return 1
	}
	return o.BatchSize
}

func (o *Options) prefetchFactor() int {
	if o.PrefetchFactor == 0 {
		return DefaultPrefetchFactor
	}
	return o.PrefetchFactor
}
