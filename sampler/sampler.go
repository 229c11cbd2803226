// Package sampler produces the index orders a loader walks through. Every call
// to Indices is a new epoch.
package sampler

import "github.com/neurlang/dataloader/rng"

// Sampler yields dataset indices for one epoch.
type Sampler interface {
	Indices() []int
	Len() int
}

// Batcher yields index batches for one epoch.
type Batcher interface {
	Batches() [][]int
	Len() int
}

// epochGenerator returns g, or a fresh generator seeded from the process wide
// one so unseeded samplers differ between epochs.
func epochGenerator(g *rng.Generator) *rng.Generator {
	if g != nil {
		return g
	}
	return rng.Default().Fork()
}

// Sequential yields 0, 1, ..., n-1.
type Sequential struct {
	n int
}

func NewSequential(n int) *Sequential {
	return &Sequential{n: n}
}

func (s *Sequential) Indices() []int {
	out := make([]int, s.n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (s *Sequential) Len() int {
	return s.n
}
