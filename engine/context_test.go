package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/dataloader/rng"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.False(t, c.Deterministic())
	assert.Same(t, rng.Default(), c.Generator())
	require.NotNil(t, c.Logger())
}

func TestOptions(t *testing.T) {
	g := rng.New(3)
	c := New(WithDeterministic(true), WithGenerator(g))
	assert.True(t, c.Deterministic())
	assert.Same(t, g, c.Generator())

	c.SetDeterministic(false)
	assert.False(t, c.Deterministic())
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Same(t, Default(), OrDefault(nil))

	c := New()
	assert.Same(t, c, OrDefault(c))
}

func TestWorkerInfo(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, WorkerInfoFrom(ctx))

	info := &WorkerInfo{ID: 1, NumWorkers: 4, Seed: 10}
	got := WorkerInfoFrom(ContextWithWorkerInfo(ctx, info))
	assert.Same(t, info, got)
}
