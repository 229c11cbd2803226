package datasets

import (
	"errors"
	"sort"
)

// ConcatDataset addresses several map style datasets as one.
type ConcatDataset[T any] struct {
	datasets        []Dataset[T]
	cumulativeSizes []int
}

func NewConcatDataset[T any](datasets ...Dataset[T]) (*ConcatDataset[T], error) {
	if len(datasets) == 0 {
		return nil, errors.New("datasets should not be empty")
	}
	c := &ConcatDataset[T]{
		datasets:        datasets,
		cumulativeSizes: make([]int, len(datasets)),
	}
	var total int
	for i, d := range datasets {
		total += d.Len()
		c.cumulativeSizes[i] = total
	}
	return c, nil
}

func (c *ConcatDataset[T]) Len() int {
	return c.cumulativeSizes[len(c.cumulativeSizes)-1]
}

func (c *ConcatDataset[T]) Get(n int) (T, error) {
	if err := checkIndex(n, c.Len()); err != nil {
		var zero T
		return zero, err
	}
	// first dataset whose cumulative size exceeds n
	i := sort.SearchInts(c.cumulativeSizes, n+1)
	if i > 0 {
		n -= c.cumulativeSizes[i-1]
	}
	return c.datasets[i].Get(n)
}

// CumulativeSizes returns the running totals of the member lengths.
func (c *ConcatDataset[T]) CumulativeSizes() []int {
	return c.cumulativeSizes
}

func (c *ConcatDataset[T]) Datasets() []Dataset[T] {
	return c.datasets
}
