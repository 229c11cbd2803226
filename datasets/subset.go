package datasets

import "fmt"

// Subset views a dataset through a list of indices.
type Subset[T any] struct {
	Dataset Dataset[T]
	Indices []int
}

func NewSubset[T any](d Dataset[T], indices []int) *Subset[T] {
	return &Subset[T]{Dataset: d, Indices: indices}
}

func (s *Subset[T]) Get(n int) (T, error) {
	if err := checkIndex(n, len(s.Indices)); err != nil {
		var zero T
		return zero, err
	}
	v, err := s.Dataset.Get(s.Indices[n])
	if err != nil {
		return v, fmt.Errorf("subset index %d: %w", n, err)
	}
	return v, nil
}

func (s *Subset[T]) Len() int {
	return len(s.Indices)
}
