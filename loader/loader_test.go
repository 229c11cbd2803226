package loader

import (
	"context"
	"errors"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neurlang/dataloader/datasets"
	"github.com/neurlang/dataloader/distributed"
	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/rng"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ints(n int) datasets.Slice[int] {
	s := make(datasets.Slice[int], n)
	for i := range s {
		s[i] = i
	}
	return s
}

// slow delays samples by a varying amount so workers finish out of order.
func slow(n int) datasets.Dataset[int] {
	return datasets.FromFunc(n, func(i int) (int, error) {
		time.Sleep(time.Duration((n-i)%4) * time.Millisecond)
		return i, nil
	})
}

func drain[B any](t *testing.T, l *Loader[int, B]) []B {
	t.Helper()
	var out []B
	for b, err := range l.Iter(context.Background()) {
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func flatten(batches [][]int) []int {
	var out []int
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

func TestDatasetKindString(t *testing.T) {
	assert.Equal(t, "map", Map.String())
	assert.Equal(t, "iterable", Iterable.String())
	assert.Equal(t, "DatasetKind(7)", DatasetKind(7).String())
}

func TestGetWorkerInfoOutsideWorker(t *testing.T) {
	assert.Nil(t, GetWorkerInfo(context.Background()))
}

func TestInlineBatches(t *testing.T) {
	l, err := New(ints(10), Stack[int], Options{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, Map, l.Kind())

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9}}, drain(t, l))
}

func TestInlineDropLast(t *testing.T) {
	l, err := New(ints(10), Stack[int], Options{BatchSize: 3, DropLast: true})
	require.NoError(t, err)
	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, drain(t, l), 3)
}

func TestDisableBatching(t *testing.T) {
	first := func(s []int) (int, error) { return s[0], nil }
	l, err := New[int, int](ints(5), first, Options{DisableBatching: true})
	require.NoError(t, err)
	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, drain(t, l))
}

func TestCollateError(t *testing.T) {
	boom := errors.New("boom")
	failing := func([]int) (int, error) { return 0, boom }
	l, err := New[int, int](ints(5), failing, Options{})
	require.NoError(t, err)
	var errs []error
	for _, err := range l.Iter(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestShuffleReproducible(t *testing.T) {
	run := func() []int {
		l, err := New(ints(30), Stack[int], Options{BatchSize: 4, Shuffle: true, Generator: rng.New(5)})
		require.NoError(t, err)
		return flatten(drain(t, l))
	}
	a, b := run(), run()
	assert.Equal(t, a, b)

	sorted := append([]int(nil), a...)
	sort.Ints(sorted)
	assert.Equal(t, []int(ints(30)), sorted)
}

func TestDistributedSampler(t *testing.T) {
	s, err := distributed.NewSampler(10, 3, 1, distributed.WithShuffle(false))
	require.NoError(t, err)
	l, err := New(ints(10), Stack[int], Options{BatchSize: 2, Sampler: s})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 4}, {7, 0}}, drain(t, l))
}

func TestInvalidOptions(t *testing.T) {
	s, err := distributed.NewSampler(4, 1, 0)
	require.NoError(t, err)
	for name, opts := range map[string]Options{
		"negative batch":         {BatchSize: -1},
		"negative workers":       {NumWorkers: -1},
		"negative timeout":       {Timeout: -time.Second},
		"prefetch without pool":  {PrefetchFactor: 2},
		"negative prefetch":      {NumWorkers: 1, PrefetchFactor: -1},
		"sampler and shuffle":    {Sampler: s, Shuffle: true},
		"drop last unbatched":    {DisableBatching: true, DropLast: true},
		"batch sampler and size": {BatchSampler: fixedBatches{{0}}, BatchSize: 4},
	} {
		_, err := New(ints(4), Stack[int], opts)
		assert.Error(t, err, name)
	}

	_, err = New[int, []int](ints(4), nil, Options{})
	assert.Error(t, err)

	for name, opts := range map[string]Options{
		"shuffle":       {Shuffle: true},
		"sampler":       {Sampler: s},
		"batch sampler": {BatchSampler: fixedBatches{{0}}},
	} {
		_, err := NewIterable(ints(4), Stack[int], opts)
		assert.Error(t, err, name)
	}
}

type fixedBatches [][]int

func (f fixedBatches) Batches() [][]int { return f }
func (f fixedBatches) Len() int         { return len(f) }

func TestBatchSampler(t *testing.T) {
	l, err := New(ints(10), Stack[int], Options{BatchSampler: fixedBatches{{9, 0}, {5}}})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{9, 0}, {5}}, drain(t, l))
}

func TestWorkersDeterministicOrder(t *testing.T) {
	rt := engine.New(engine.WithDeterministic(true), engine.WithGenerator(rng.New(1)))
	l, err := New(slow(40), Stack[int], Options{BatchSize: 3, NumWorkers: 4, Runtime: rt})
	require.NoError(t, err)

	inline, err := New(slow(40), Stack[int], Options{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, drain(t, inline), drain(t, l))
}

func TestWorkersNondeterministicCoversAll(t *testing.T) {
	rt := engine.New(engine.WithGenerator(rng.New(1)))
	l, err := New(slow(40), Stack[int], Options{BatchSize: 3, NumWorkers: 4, PrefetchFactor: 1, Runtime: rt})
	require.NoError(t, err)

	got := flatten(drain(t, l))
	sort.Ints(got)
	assert.Equal(t, []int(ints(40)), got)
}

func TestWorkerInfo(t *testing.T) {
	var (
		mu    sync.Mutex
		infos []*engine.WorkerInfo
	)
	rt := engine.New(engine.WithGenerator(rng.New(3)))
	l, err := New(ints(8), Stack[int], Options{
		NumWorkers: 3,
		Runtime:    rt,
		WorkerInit: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			infos = append(infos, GetWorkerInfo(ctx))
			return nil
		},
	})
	require.NoError(t, err)
	drain(t, l)

	require.Len(t, infos, 3)
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	base := rng.New(3).Uint64()
	for id, info := range infos {
		assert.Equal(t, id, info.ID)
		assert.Equal(t, 3, info.NumWorkers)
		assert.Equal(t, base+uint64(id), info.Seed)
		assert.NotNil(t, info.Generator)
	}
}

func TestWorkerInitError(t *testing.T) {
	boom := errors.New("boom")
	l, err := New(ints(8), Stack[int], Options{
		NumWorkers: 2,
		WorkerInit: func(ctx context.Context) error {
			if GetWorkerInfo(ctx).ID == 1 {
				return boom
			}
			return nil
		},
	})
	require.NoError(t, err)

	var last error
	for _, err := range l.Iter(context.Background()) {
		last = err
	}
	assert.ErrorIs(t, last, boom)
}

func TestWorkerSampleError(t *testing.T) {
	boom := errors.New("boom")
	d := datasets.FromFunc(20, func(i int) (int, error) {
		if i == 13 {
			return 0, boom
		}
		return i, nil
	})
	rt := engine.New(engine.WithDeterministic(true))
	l, err := New(d, Stack[int], Options{BatchSize: 2, NumWorkers: 3, Runtime: rt})
	require.NoError(t, err)

	var batches int
	var last error
	for _, err := range l.Iter(context.Background()) {
		if err != nil {
			last = err
			break
		}
		batches++
	}
	assert.ErrorIs(t, last, boom)
	assert.Equal(t, 6, batches, "batches before the failing one arrive in order")
}

func TestTimeout(t *testing.T) {
	d := datasets.FromFunc(4, func(i int) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return i, nil
	})
	l, err := New(d, Stack[int], Options{NumWorkers: 1, Timeout: 10 * time.Millisecond})
	require.NoError(t, err)

	for _, err := range l.Iter(context.Background()) {
		assert.ErrorIs(t, err, ErrTimeout)
		break
	}
}

func TestEarlyBreakStopsWorkers(t *testing.T) {
	l, err := New(slow(100), Stack[int], Options{NumWorkers: 4})
	require.NoError(t, err)
	for b, err := range l.Iter(context.Background()) {
		require.NoError(t, err)
		require.Len(t, b, 1)
		break
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{0, 2} {
		l, err := New(ints(10), Stack[int], Options{NumWorkers: workers})
		require.NoError(t, err)
		var errs []error
		for _, err := range l.Iter(ctx) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1, "workers %d", workers)
		assert.ErrorIs(t, errs[0], context.Canceled)
	}
}

// strided yields 0..n-1, split between workers by id.
func strided(n int) datasets.IterableDataset[int] {
	return datasets.IterFunc[int](func(ctx context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			start, step := 0, 1
			if info := GetWorkerInfo(ctx); info != nil {
				start, step = info.ID, info.NumWorkers
			}
			for i := start; i < n; i += step {
				if !yield(i, nil) {
					return
				}
			}
		}
	})
}

func TestIterableInline(t *testing.T) {
	l, err := NewIterable(ints(7), Stack[int], Options{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, Iterable, l.Kind())
	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, drain(t, l))

	l, err = NewIterable(ints(7), Stack[int], Options{BatchSize: 3, DropLast: true})
	require.NoError(t, err)
	assert.Len(t, drain(t, l), 2)

	unsized, err := NewIterable(strided(3), Stack[int], Options{})
	require.NoError(t, err)
	_, err = unsized.Len()
	assert.ErrorIs(t, err, datasets.ErrNotSized)
}

func TestIterableWorkersRoundRobin(t *testing.T) {
	rt := engine.New(engine.WithDeterministic(true))
	l, err := NewIterable(strided(11), Stack[int], Options{BatchSize: 2, NumWorkers: 2, Runtime: rt})
	require.NoError(t, err)
	// worker 0 owns the even numbers, worker 1 the odd ones
	want := [][]int{{0, 2}, {1, 3}, {4, 6}, {5, 7}, {8, 10}, {9}}
	assert.Equal(t, want, drain(t, l))
}

func TestIterableWorkersReplicateUnshardedStream(t *testing.T) {
	l, err := NewIterable(ints(5), Stack[int], Options{BatchSize: 5, NumWorkers: 3})
	require.NoError(t, err)
	batches := drain(t, l)
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.Equal(t, []int(ints(5)), b)
	}
}

// prefetchBound is the most samples workers may have pulled while the first
// batch is still being loaded, with batch size 1.
func prefetchBound(opts Options) int64 {
	return int64(opts.NumWorkers * (opts.prefetchFactor() + 1))
}

func TestMapWorkersPrefetchBounded(t *testing.T) {
	const stall = 200 * time.Millisecond
	var fetched, ahead atomic.Int64
	d := datasets.FromFunc(50, func(i int) (int, error) {
		fetched.Add(1)
		if i == 0 {
			time.Sleep(stall)
			ahead.Store(fetched.Load())
		}
		return i, nil
	})
	opts := Options{
		NumWorkers:     2,
		PrefetchFactor: 1,
		Runtime:        engine.New(engine.WithDeterministic(true), engine.WithGenerator(rng.New(1))),
	}
	l, err := New(d, Stack[int], opts)
	require.NoError(t, err)

	got := flatten(drain(t, l))
	assert.Equal(t, []int(ints(50)), got)
	assert.LessOrEqual(t, ahead.Load(), prefetchBound(opts))
}

func TestIterableWorkersPrefetchBounded(t *testing.T) {
	const (
		stall = 200 * time.Millisecond
		fast  = 50
	)
	var produced, ahead atomic.Int64
	d := datasets.IterFunc[int](func(ctx context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			info := GetWorkerInfo(ctx)
			if info.ID == 0 {
				time.Sleep(stall)
				ahead.Store(produced.Load())
				for i := 0; i < 3; i++ {
					if !yield(-1, nil) {
						return
					}
				}
				return
			}
			for i := 0; i < fast; i++ {
				produced.Add(1)
				if !yield(i, nil) {
					return
				}
			}
		}
	})
	opts := Options{
		NumWorkers:     2,
		PrefetchFactor: 1,
		Runtime:        engine.New(engine.WithDeterministic(true), engine.WithGenerator(rng.New(1))),
	}
	l, err := NewIterable(d, Stack[int], opts)
	require.NoError(t, err)

	batches := drain(t, l)
	require.Len(t, batches, 3+fast)
	// worker 0 goes first and alternates with worker 1 until it runs dry
	assert.Equal(t, [][]int{{-1}, {0}, {-1}, {1}, {-1}, {2}, {3}}, batches[:7])
	assert.LessOrEqual(t, ahead.Load(), prefetchBound(opts))
}

func TestIterableWorkersNondeterministicPrefetch(t *testing.T) {
	var produced atomic.Int64
	d := datasets.IterFunc[int](func(ctx context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := 0; i < 20; i++ {
				produced.Add(1)
				if !yield(i, nil) {
					return
				}
			}
		}
	})
	opts := Options{NumWorkers: 2, PrefetchFactor: 2}
	l, err := NewIterable(d, Stack[int], opts)
	require.NoError(t, err)

	for _, err := range l.Iter(context.Background()) {
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		// one batch taken by the consumer on top of the queued ones
		assert.LessOrEqual(t, produced.Load(), prefetchBound(opts)+1)
		break
	}
}
