package datasets

import "github.com/neurlang/dataloader/parallel"

// Cached reads every sample of d on up to threads goroutines and returns them
// as an in memory Slice.
func Cached[T any](d Dataset[T], threads int) (Slice[T], error) {
	out := make(Slice[T], d.Len())
	err := parallel.ForEach(len(out), threads, func(i int) (err error) {
		out[i], err = d.Get(i)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
