package datasets

import "errors"

var ErrSizeMismatch = errors.New("size mismatch between tensors")

// TensorDataset zips equally long columns. Sample n is the row made of the
// n-th element of every column.
type TensorDataset[T any] struct {
	tensors [][]T
}

func NewTensorDataset[T any](tensors ...[]T) (*TensorDataset[T], error) {
	if len(tensors) == 0 {
		return nil, errors.New("at least one tensor required")
	}
	for _, t := range tensors[1:] {
		if len(t) != len(tensors[0]) {
			return nil, ErrSizeMismatch
		}
	}
	return &TensorDataset[T]{tensors: tensors}, nil
}

func (d *TensorDataset[T]) Get(n int) ([]T, error) {
	if err := checkIndex(n, d.Len()); err != nil {
		return nil, err
	}
	row := make([]T, len(d.tensors))
	for i, t := range d.tensors {
		row[i] = t[n]
	}
	return row, nil
}

func (d *TensorDataset[T]) Len() int {
	return len(d.tensors[0])
}

func (d *TensorDataset[T]) Tensors() [][]T {
	return d.tensors
}
