package sampler

import (
	"fmt"

	"github.com/neurlang/dataloader/rng"
)

// Random yields random indices of a dataset of length n. Without replacement
// and with more samples than n it concatenates fresh permutations.
type Random struct {
	n           int
	replacement bool
	numSamples  int
	gen         *rng.Generator
}

// NewRandom returns a random sampler. numSamples 0 means n.
func NewRandom(n int, replacement bool, numSamples int, g *rng.Generator) (*Random, error) {
	if n < 0 {
		return nil, fmt.Errorf("dataset length should be non-negative, but got %d", n)
	}
	if numSamples < 0 {
		return nil, fmt.Errorf("num_samples should be a positive integer value, but got num_samples=%d", numSamples)
	}
	if numSamples == 0 {
		numSamples = n
	}
	if n == 0 && numSamples > 0 {
		return nil, fmt.Errorf("cannot draw %d samples from an empty dataset", numSamples)
	}
	return &Random{n: n, replacement: replacement, numSamples: numSamples, gen: g}, nil
}

func (r *Random) Indices() []int {
	g := epochGenerator(r.gen)
	if r.replacement {
		out := make([]int, r.numSamples)
		for i := range out {
			out[i] = g.Intn(r.n)
		}
		return out
	}
	out := make([]int, 0, r.numSamples)
	for len(out) < r.numSamples {
		out = append(out, g.Perm(r.n)...)
	}
	return out[:r.numSamples]
}

func (r *Random) Len() int {
	return r.numSamples
}

// SubsetRandom yields the given indices in random order, without replacement.
type SubsetRandom struct {
	indices []int
	gen     *rng.Generator
}

func NewSubsetRandom(indices []int, g *rng.Generator) *SubsetRandom {
	return &SubsetRandom{indices: indices, gen: g}
}

func (s *SubsetRandom) Indices() []int {
	perm := epochGenerator(s.gen).Perm(len(s.indices))
	out := make([]int, len(perm))
	for i, p := range perm {
		out[i] = s.indices[p]
	}
	return out
}

func (s *SubsetRandom) Len() int {
	return len(s.indices)
}
