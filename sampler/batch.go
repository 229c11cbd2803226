package sampler

import "fmt"

// Batch groups the indices of another sampler into batches of batchSize. The
// last short batch is kept unless dropLast is set.
type Batch struct {
	sampler   Sampler
	batchSize int
	dropLast  bool
}

func NewBatch(s Sampler, batchSize int, dropLast bool) (*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch_size should be a positive integer value, but got batch_size=%d", batchSize)
	}
	return &Batch{sampler: s, batchSize: batchSize, dropLast: dropLast}, nil
}

func (b *Batch) Batches() [][]int {
	indices := b.sampler.Indices()
	out := make([][]int, 0, len(indices)/b.batchSize+1)
	for len(indices) >= b.batchSize {
		out = append(out, indices[:b.batchSize:b.batchSize])
		indices = indices[b.batchSize:]
	}
	if len(indices) > 0 && !b.dropLast {
		out = append(out, indices)
	}
	return out
}

func (b *Batch) Len() int {
	if b.dropLast {
		return b.sampler.Len() / b.batchSize
	}
	return (b.sampler.Len() + b.batchSize - 1) / b.batchSize
}

func (b *Batch) BatchSize() int {
	return b.batchSize
}

func (b *Batch) DropLast() bool {
	return b.dropLast
}
