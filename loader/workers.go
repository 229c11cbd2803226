package loader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/rng"
)

type task struct {
	seq     int
	indices []int
}

// result is one batch, or the end marker of an iterable worker.
type result[B any] struct {
	worker int
	seq    int
	batch  B
	err    error
	done   bool
}

// pool runs NumWorkers goroutines feeding results.
type pool[B any] struct {
	eg      *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	results chan result[B]
	err     error
}

func (l *Loader[T, B]) startPool(ctx context.Context) *pool[B] {
	ctx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(ctx)
	return &pool[B]{
		eg:      eg,
		ctx:     egCtx,
		cancel:  cancel,
		results: make(chan result[B], l.opts.NumWorkers*l.opts.prefetchFactor()),
	}
}

// closeWhenDone closes results once every goroutine of the pool returned.
func (p *pool[B]) closeWhenDone() {
	go func() {
		p.err = p.eg.Wait()
		close(p.results)
	}()
}

// stop cancels the pool and waits for its goroutines.
func (p *pool[B]) stop() {
	p.cancel()
	for range p.results {
	}
}

func (p *pool[B]) send(r result[B]) error {
	select {
	case p.results <- r:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// recv waits for the next result. ok is false once the pool is drained; err
// is set on timeout or cancellation.
func (p *pool[B]) recv(ctx context.Context, timeout time.Duration) (r result[B], ok bool, err error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	select {
	case r, ok = <-p.results:
		if !ok {
			// the closing goroutine wrote p.err before close
			return r, false, p.err
		}
		return r, true, nil
	case <-deadline:
		return r, false, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return r, false, ctx.Err()
	}
}

// workerContext attaches the worker info of worker id and runs WorkerInit.
func (l *Loader[T, B]) workerContext(ctx context.Context, id int, baseSeed uint64, dataset any) (context.Context, error) {
	seed := baseSeed + uint64(id)
	info := &engine.WorkerInfo{
		ID:         id,
		NumWorkers: l.opts.NumWorkers,
		Seed:       seed,
		Generator:  rng.New(seed),
		Dataset:    dataset,
	}
	ctx = engine.ContextWithWorkerInfo(ctx, info)
	if l.opts.WorkerInit != nil {
		if err := l.opts.WorkerInit(ctx); err != nil {
			l.log.Error("worker init failed", zap.Int("worker", id), zap.Error(err))
			return nil, fmt.Errorf("worker %d init: %w", id, err)
		}
	}
	return ctx, nil
}

func emit[B any](r result[B], yield func(B, error) bool) bool {
	if r.err != nil {
		var zero B
		yield(zero, r.err)
		return false
	}
	return yield(r.batch, nil)
}

// iterMapWorkers hands index batches round robin to per worker queues.
func (l *Loader[T, B]) iterMapWorkers(ctx context.Context, deterministic bool, baseSeed uint64, yield func(B, error) bool) {
	p := l.startPool(ctx)
	defer p.stop()

	tasks := l.tasks()
	queues := make([]chan task, l.opts.NumWorkers)
	for i := range queues {
		queues[i] = make(chan task, l.opts.prefetchFactor())
	}

	p.eg.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for seq, indices := range tasks {
			select {
			case queues[seq%len(queues)] <- task{seq: seq, indices: indices}:
			case <-p.ctx.Done():
				return p.ctx.Err()
			}
		}
		return nil
	})

	for id := range queues {
		p.eg.Go(func() error {
			if _, err := l.workerContext(p.ctx, id, baseSeed, l.dataset); err != nil {
				return err
			}
			for t := range queues[id] {
				b, err := l.fetch(t.indices)
				if err := p.send(result[B]{worker: id, seq: t.seq, batch: b, err: err}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	p.closeWhenDone()

	pending := make(map[int]result[B])
	next := 0
	for next < len(tasks) {
		if err := ctx.Err(); err != nil {
			var zero B
			yield(zero, err)
			return
		}
		if deterministic {
			if r, ok := pending[next]; ok {
				delete(pending, next)
				next++
				if !emit(r, yield) {
					return
				}
				continue
			}
		}

		r, ok, err := p.recv(ctx, l.opts.Timeout)
		if err != nil {
			var zero B
			yield(zero, err)
			return
		}
		if !ok {
			return
		}
		if deterministic {
			pending[r.seq] = r
			continue
		}
		next++
		if !emit(r, yield) {
			return
		}
	}
}

// iterIterableWorkers runs one copy of the stream per worker. Deterministic
// epochs take batches from the workers in turn, skipping exhausted ones.
// A worker holds PrefetchFactor credits and spends one per batch sent; the
// consumer returns it once the batch is taken, so no worker runs more than
// PrefetchFactor batches ahead.
func (l *Loader[T, B]) iterIterableWorkers(ctx context.Context, deterministic bool, baseSeed uint64, yield func(B, error) bool) {
	p := l.startPool(ctx)
	defer p.stop()

	credits := make([]chan struct{}, l.opts.NumWorkers)
	for i := range credits {
		credits[i] = make(chan struct{}, l.opts.prefetchFactor())
		for range l.opts.prefetchFactor() {
			credits[i] <- struct{}{}
		}
	}
	release := func(worker int) {
		credits[worker] <- struct{}{}
	}

	for id := 0; id < l.opts.NumWorkers; id++ {
		p.eg.Go(func() error {
			wctx, err := l.workerContext(p.ctx, id, baseSeed, l.iterable)
			if err != nil {
				return err
			}
			seq := 0
			var sendErr error
			l.batchStream(wctx, func(b B, err error) bool {
				select {
				case <-credits[id]:
				case <-p.ctx.Done():
					sendErr = p.ctx.Err()
					return false
				}
				sendErr = p.send(result[B]{worker: id, seq: seq, batch: b, err: err})
				seq++
				return sendErr == nil
			})
			if sendErr != nil {
				return sendErr
			}
			return p.send(result[B]{worker: id, seq: seq, done: true})
		})
	}
	p.closeWhenDone()

	type key struct{ worker, seq int }
	var (
		pending = make(map[key]result[B])
		nextSeq = make([]int, l.opts.NumWorkers)
		active  = make([]bool, l.opts.NumWorkers)
		live    = l.opts.NumWorkers
		cur     = 0
	)
	for i := range active {
		active[i] = true
	}

	for live > 0 {
		if err := ctx.Err(); err != nil {
			var zero B
			yield(zero, err)
			return
		}
		if deterministic {
			for !active[cur] {
				cur = (cur + 1) % len(active)
			}
			k := key{cur, nextSeq[cur]}
			if r, ok := pending[k]; ok {
				delete(pending, k)
				nextSeq[cur]++
				if r.done {
					active[cur] = false
					live--
					continue
				}
				release(cur)
				cur = (cur + 1) % len(active)
				if !emit(r, yield) {
					return
				}
				continue
			}
		}

		r, ok, err := p.recv(ctx, l.opts.Timeout)
		if err != nil {
			var zero B
			yield(zero, err)
			return
		}
		if !ok {
			return
		}
		if deterministic {
			pending[key{r.worker, r.seq}] = r
			continue
		}
		if r.done {
			live--
			continue
		}
		release(r.worker)
		if !emit(r, yield) {
			return
		}
	}
}
