package sampler

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/neurlang/dataloader/rng"
)

// WeightedRandom yields indices in [0, len(weights)) with probability
// proportional to their weight.
type WeightedRandom struct {
	weights     []float64
	numSamples  int
	replacement bool
	gen         *rng.Generator
}

func NewWeightedRandom(weights []float64, numSamples int, replacement bool, g *rng.Generator) (*WeightedRandom, error) {
	if numSamples <= 0 {
		return nil, fmt.Errorf("num_samples should be a positive integer value, but got num_samples=%d", numSamples)
	}
	if len(weights) == 0 {
		return nil, errors.New("weights should not be empty")
	}
	var nonZero int
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("invalid weight %v at index %d", w, i)
		}
		if w > 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		return nil, errors.New("weights sum to zero")
	}
	if !replacement && numSamples > nonZero {
		return nil, fmt.Errorf("cannot sample %d samples without replacement from %d non-zero weights", numSamples, nonZero)
	}
	return &WeightedRandom{
		weights:     append([]float64(nil), weights...),
		numSamples:  numSamples,
		replacement: replacement,
		gen:         g,
	}, nil
}

// pick draws one index from the weights through their cumulative sums.
func pick(g *rng.Generator, cumulative []float64) int {
	total := cumulative[len(cumulative)-1]
	r := g.Float64() * total
	i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
	if i == len(cumulative) {
		// rounding pushed r onto total, take the last positive weight
		i = len(cumulative) - 1
		for i > 0 && cumulative[i] == cumulative[i-1] {
			i--
		}
	}
	return i
}

func cumulate(weights []float64, cumulative []float64) {
	var sum float64
	for i, w := range weights {
		sum += w
		cumulative[i] = sum
	}
}

func (w *WeightedRandom) Indices() []int {
	g := epochGenerator(w.gen)
	out := make([]int, w.numSamples)
	cumulative := make([]float64, len(w.weights))

	if w.replacement {
		cumulate(w.weights, cumulative)
		for i := range out {
			out[i] = pick(g, cumulative)
		}
		return out
	}

	weights := append([]float64(nil), w.weights...)
	for i := range out {
		cumulate(weights, cumulative)
		out[i] = pick(g, cumulative)
		weights[out[i]] = 0
	}
	return out
}

func (w *WeightedRandom) Len() int {
	return w.numSamples
}
