package engine

import (
	"context"

	"github.com/neurlang/dataloader/rng"
)

// WorkerInfo describes the loader worker a goroutine runs in.
type WorkerInfo struct {
	// ID is in [0, NumWorkers).
	ID         int
	NumWorkers int
	// Seed is the base seed of the epoch plus ID.
	Seed uint64
	// Generator is keyed by Seed and private to the worker.
	Generator *rng.Generator
	// Dataset is the dataset the worker reads from.
	Dataset any
}

type workerInfoKey struct{}

// ContextWithWorkerInfo attaches info to ctx.
func ContextWithWorkerInfo(ctx context.Context, info *WorkerInfo) context.Context {
	return context.WithValue(ctx, workerInfoKey{}, info)
}

// WorkerInfoFrom returns the worker info attached to ctx, or nil outside of a
// loader worker.
func WorkerInfoFrom(ctx context.Context) *WorkerInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(workerInfoKey{}).(*WorkerInfo)
	return info
}
