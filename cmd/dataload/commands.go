package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neurlang/dataloader"
	"github.com/neurlang/dataloader/datasets"
	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/loader"
	"github.com/neurlang/dataloader/parallel"
	"github.com/neurlang/dataloader/sampler"
)

// synthetic returns size samples whose value is their index.
func synthetic(size int) datasets.Dataset[int] {
	return datasets.FromFunc(size, func(i int) (int, error) { return i, nil })
}

func batchHash(batch []int) [32]byte {
	buf := make([]byte, 8*len(batch))
	for i, v := range batch {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return sha256.Sum256(buf)
}

// plan fixes the index batches of one epoch up front and remembers where each
// batch sits, so batches delivered out of order can be put back in place.
type plan struct {
	batches  [][]int
	position map[int]int // first index of a batch -> batch position
}

func newPlan(size int, opts loader.Options) (*plan, error) {
	var (
		s   sampler.Sampler = sampler.NewSequential(size)
		err error
	)
	if opts.Shuffle {
		s, err = sampler.NewRandom(size, false, 0, opts.Generator)
		if err != nil {
			return nil, err
		}
	}
	b, err := sampler.NewBatch(s, max(opts.BatchSize, 1), opts.DropLast)
	if err != nil {
		return nil, err
	}
	p := &plan{batches: b.Batches(), position: make(map[int]int)}
	for i, batch := range p.batches {
		p.position[batch[0]] = i
	}
	return p, nil
}

func (p *plan) Batches() [][]int { return p.batches }
func (p *plan) Len() int         { return len(p.batches) }

// epoch runs one epoch over a fresh runtime built from the configuration and
// returns the digest of the batches in sampler order, however they arrived.
func (a *app) epoch(ctx context.Context, size int, deterministic bool) (sum [32]byte, batches int, err error) {
	rt := a.cfg.Loader.Runtime(engine.WithLogger(a.logger))
	opts, err := a.cfg.Loader.Options(rt)
	if err != nil {
		return sum, 0, err
	}
	p, err := newPlan(size, opts)
	if err != nil {
		return sum, 0, err
	}
	opts.BatchSampler = p
	opts.BatchSize, opts.Shuffle, opts.DropLast = 0, false, false

	l, err := loader.New(synthetic(size), loader.Stack[int], opts)
	if err != nil {
		return sum, 0, err
	}

	digest := parallel.NewDigest()
	err = dataloader.WithDeterministic(rt, deterministic, func() error {
		for b, err := range l.Iter(ctx) {
			if err != nil {
				return err
			}
			if err := digest.Put(p.position[b[0]], batchHash(b)); err != nil {
				return err
			}
			batches++
		}
		return nil
	})
	if err != nil {
		return sum, batches, err
	}
	sum, err = digest.Sum()
	return sum, batches, err
}

func (a *app) runCmd() *cobra.Command {
	var (
		size          int
		epochs        int
		deterministic bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Iterate the synthetic dataset and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.New().String()
			log := a.logger.With(zap.String("run_id", runID))
			for e := 0; e < epochs; e++ {
				start := time.Now()
				sum, batches, err := a.epoch(cmd.Context(), size, deterministic || a.cfg.Loader.Deterministic)
				if err != nil {
					return fmt.Errorf("epoch %d: %w", e, err)
				}
				log.Info("epoch done",
					zap.Int("epoch", e),
					zap.Int("batches", batches),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("digest", fmt.Sprintf("%x", sum[:8])))
				fmt.Fprintf(cmd.OutOrStdout(), "epoch %d: %d batches %x\n", e, batches, sum[:8])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 1000, "number of synthetic samples")
	cmd.Flags().IntVar(&epochs, "epochs", 1, "number of epochs")
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "deliver batches in sampler order")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that two deterministic epochs with the same seed match",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.New().String()
			first, n, err := a.epoch(cmd.Context(), size, true)
			if err != nil {
				return err
			}
			second, _, err := a.epoch(cmd.Context(), size, true)
			if err != nil {
				return err
			}
			if first != second {
				a.logger.Error("epochs differ", zap.String("run_id", runID))
				return fmt.Errorf("deterministic epochs differ: %x != %x", first[:8], second[:8])
			}
			a.logger.Info("epochs reproduce", zap.String("run_id", runID), zap.Int("batches", n))
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d batches %x\n", n, first[:8])
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 1000, "number of synthetic samples")
	return cmd
}
