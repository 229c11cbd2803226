package datasets

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/neurlang/dataloader/rng"
)

// RandomSplit partitions d into non-overlapping subsets of the given lengths
// using a permutation drawn from g. A nil g draws from rng.Default().
func RandomSplit[T any](d Dataset[T], lengths []int, g *rng.Generator) ([]*Subset[T], error) {
	var sum int
	for _, l := range lengths {
		if l < 0 {
			return nil, fmt.Errorf("negative split length %d", l)
		}
		sum += l
	}
	if sum != d.Len() {
		return nil, fmt.Errorf("sum of input lengths (%d) does not equal the length of the input dataset (%d)", sum, d.Len())
	}
	if g == nil {
		g = rng.Default()
	}

	perm := g.Perm(sum)
	out := make([]*Subset[T], len(lengths))
	var offset int
	for i, l := range lengths {
		out[i] = NewSubset(d, perm[offset:offset+l])
		offset += l
	}
	return out, nil
}

// RandomSplitFractions is RandomSplit with lengths given as fractions of
// d.Len() summing to 1. Each length is floored and the remainder is handed out
// one by one in round robin. Empty subsets are reported on log, which may be
// nil.
func RandomSplitFractions[T any](d Dataset[T], fractions []float64, g *rng.Generator, log *zap.Logger) ([]*Subset[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	var sum float64
	for _, f := range fractions {
		if f < 0 || f > 1 || math.IsNaN(f) {
			return nil, fmt.Errorf("fraction %v not in [0, 1]", f)
		}
		sum += f
	}
	if math.Abs(sum-1) > 1e-9 {
		return nil, fmt.Errorf("fractions sum to %v, want 1", sum)
	}

	n := d.Len()
	lengths := make([]int, len(fractions))
	var assigned int
	for i, f := range fractions {
		lengths[i] = int(math.Floor(float64(n) * f))
		assigned += lengths[i]
	}
	for i := 0; i < n-assigned; i++ {
		lengths[i%len(lengths)]++
	}
	for i, l := range lengths {
		if l == 0 {
			log.Warn("random split produced an empty subset", zap.Int("split", i))
		}
	}
	return RandomSplit(d, lengths, g)
}
