// Package dataloader gathers the samplers, datasets, distributed sampler,
// loader and datapipe helpers under one import.
//
// The names below forward to the packages that define them:
//
//	dataloader.Dataset[T]          datasets.Dataset[T]
//	dataloader.RandomSampler       sampler.Random
//	dataloader.DistributedSampler  distributed.Sampler
//	dataloader.DataLoader[T, B]    loader.Loader[T, B]
//	dataloader.IterDataPipe[T]     datapipes.IterDataPipe[T]
package dataloader

import (
	"github.com/neurlang/dataloader/datapipes"
	"github.com/neurlang/dataloader/datasets"
	"github.com/neurlang/dataloader/distributed"
	"github.com/neurlang/dataloader/loader"
	"github.com/neurlang/dataloader/sampler"
)

// samplers
type (
	Sampler               = sampler.Sampler
	SequentialSampler     = sampler.Sequential
	RandomSampler         = sampler.Random
	SubsetRandomSampler   = sampler.SubsetRandom
	WeightedRandomSampler = sampler.WeightedRandom
	BatchSampler          = sampler.Batch
	DistributedSampler    = distributed.Sampler
)

var (
	NewSequentialSampler     = sampler.NewSequential
	NewRandomSampler         = sampler.NewRandom
	NewSubsetRandomSampler   = sampler.NewSubsetRandom
	NewWeightedRandomSampler = sampler.NewWeightedRandom
	NewBatchSampler          = sampler.NewBatch
	NewDistributedSampler    = distributed.NewSampler
)

// datasets
type (
	Dataset[T any]         = datasets.Dataset[T]
	IterableDataset[T any] = datasets.IterableDataset[T]
	TensorDataset[T any]   = datasets.TensorDataset[T]
	ConcatDataset[T any]   = datasets.ConcatDataset[T]
	ChainDataset[T any]    = datasets.ChainDataset[T]
	Subset[T any]          = datasets.Subset[T]
)

func NewTensorDataset[T any](tensors ...[]T) (*TensorDataset[T], error) {
	return datasets.NewTensorDataset(tensors...)
}

func NewConcatDataset[T any](ds ...Dataset[T]) (*ConcatDataset[T], error) {
	return datasets.NewConcatDataset(ds...)
}

func NewChainDataset[T any](ds ...IterableDataset[T]) *ChainDataset[T] {
	return datasets.NewChainDataset(ds...)
}

func NewSubset[T any](d Dataset[T], indices []int) *Subset[T] {
	return datasets.NewSubset(d, indices)
}

// RandomSplit is datasets.RandomSplit.
func RandomSplit[T any](d Dataset[T], lengths []int, g *Generator) ([]*Subset[T], error) {
	return datasets.RandomSplit(d, lengths, g)
}

// loader
type (
	DataLoader[T, B any] = loader.Loader[T, B]
	DatasetKind          = loader.DatasetKind
	LoaderOptions        = loader.Options
)

const (
	MapDatasetKind      = loader.Map
	IterableDatasetKind = loader.Iterable
)

var GetWorkerInfo = loader.GetWorkerInfo

func NewDataLoader[T, B any](d Dataset[T], collate loader.Collate[T, B], opts LoaderOptions) (*DataLoader[T, B], error) {
	return loader.New(d, collate, opts)
}

func NewIterableDataLoader[T, B any](d IterableDataset[T], collate loader.Collate[T, B], opts LoaderOptions) (*DataLoader[T, B], error) {
	return loader.NewIterable(d, collate, opts)
}

// datapipes
type IterDataPipe[T any] = datapipes.IterDataPipe[T]

var FunctionalDatapipe = datapipes.FunctionalDatapipe
