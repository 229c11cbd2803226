// Package distributed restricts a dataset to the share of one replica in a
// multi process job.
package distributed

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/neurlang/dataloader/rng"
)

// Sampler hands each of NumReplicas ranks a disjoint, equally long share of
// the dataset indices. All ranks must use the same seed and epoch.
type Sampler struct {
	n           int
	numReplicas int
	rank        int
	shuffle     bool
	seed        uint64
	dropLast    bool
	epoch       int

	numSamples int
	totalSize  int
}

type Option func(s *Sampler)

// WithShuffle toggles shuffling, which is on by default.
func WithShuffle(shuffle bool) Option {
	return func(s *Sampler) { s.shuffle = shuffle }
}

// WithSeed sets the shuffle seed shared by all replicas.
func WithSeed(seed uint64) Option {
	return func(s *Sampler) { s.seed = seed }
}

// WithDropLast drops the tail so the dataset divides evenly instead of
// padding it with repeated indices.
func WithDropLast(dropLast bool) Option {
	return func(s *Sampler) { s.dropLast = dropLast }
}

func NewSampler(n, numReplicas, rank int, opts ...Option) (*Sampler, error) {
	if n < 0 {
		return nil, fmt.Errorf("dataset length should be non-negative, but got %d", n)
	}
	if numReplicas <= 0 {
		return nil, fmt.Errorf("num_replicas should be a positive integer value, but got num_replicas=%d", numReplicas)
	}
	if rank < 0 || rank >= numReplicas {
		return nil, fmt.Errorf("invalid rank %d, rank should be in the interval [0, %d]", rank, numReplicas-1)
	}
	s := &Sampler{
		n:           n,
		numReplicas: numReplicas,
		rank:        rank,
		shuffle:     true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dropLast && n%numReplicas != 0 {
		s.numSamples = (n - numReplicas + numReplicas - 1) / numReplicas
	} else {
		s.numSamples = (n + numReplicas - 1) / numReplicas
	}
	s.totalSize = s.numSamples * numReplicas
	return s, nil
}

// SetEpoch sets the epoch mixed into the shuffle seed. Call it before each
// epoch, otherwise every epoch repeats the same order.
func (s *Sampler) SetEpoch(epoch int) {
	s.epoch = epoch
}

func (s *Sampler) Epoch() int {
	return s.epoch
}

func (s *Sampler) Indices() []int {
	var indices []int
	if s.shuffle {
		indices = rng.New(s.seed + uint64(s.epoch)).Perm(s.n)
	} else {
		indices = make([]int, s.n)
		for i := range indices {
			indices[i] = i
		}
	}

	if s.dropLast {
		indices = indices[:s.totalSize]
	} else if n := len(indices); n > 0 {
		// pad by cycling through the indices again
		for i := n; i < s.totalSize; i++ {
			indices = append(indices, indices[i%n])
		}
	}

	out := make([]int, 0, s.numSamples)
	for i := s.rank; i < s.totalSize; i += s.numReplicas {
		out = append(out, indices[i])
	}
	return out
}

// Len is the number of indices of this rank.
func (s *Sampler) Len() int {
	return s.numSamples
}

func (s *Sampler) NumReplicas() int {
	return s.numReplicas
}

func (s *Sampler) Rank() int {
	return s.rank
}

// Env is the process group layout as announced by the launcher.
type Env struct {
	WorldSize int `env:"WORLD_SIZE" envDefault:"1"`
	Rank      int `env:"RANK" envDefault:"0"`
}

// FromEnv reads WORLD_SIZE and RANK.
func FromEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// NewSamplerFromEnv builds a Sampler for the replica described by the
// environment.
func NewSamplerFromEnv(n int, opts ...Option) (*Sampler, error) {
	e, err := FromEnv()
	if err != nil {
		return nil, err
	}
	return NewSampler(n, e.WorldSize, e.Rank, opts...)
}
