package datasets

import (
	"context"
	"iter"
)

// ChainDataset streams several iterable datasets one after another.
type ChainDataset[T any] struct {
	datasets []IterableDataset[T]
}

func NewChainDataset[T any](datasets ...IterableDataset[T]) *ChainDataset[T] {
	return &ChainDataset[T]{datasets: datasets}
}

func (c *ChainDataset[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, d := range c.datasets {
			for v, err := range d.Iter(ctx) {
				if !yield(v, err) || err != nil {
					return
				}
			}
		}
	}
}

// Len sums the member lengths. It fails with ErrNotSized when a member does
// not implement Sized.
func (c *ChainDataset[T]) Len() (int, error) {
	var total int
	for _, d := range c.datasets {
		s, ok := d.(Sized)
		if !ok {
			return 0, ErrNotSized
		}
		total += s.Len()
	}
	return total, nil
}
