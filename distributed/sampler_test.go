package distributed

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadding(t *testing.T) {
	want := [][]int{{0, 3, 6, 9}, {1, 4, 7, 0}, {2, 5, 8, 1}}
	for rank := range want {
		s, err := NewSampler(10, 3, rank, WithShuffle(false))
		require.NoError(t, err)
		assert.Equal(t, 4, s.Len())
		assert.Equal(t, want[rank], s.Indices(), "rank %d", rank)
	}
}

func TestPaddingSmallerThanReplicas(t *testing.T) {
	// two samples over five ranks repeat the dataset more than once
	var got []int
	for rank := 0; rank < 5; rank++ {
		s, err := NewSampler(2, 5, rank, WithShuffle(false))
		require.NoError(t, err)
		got = append(got, s.Indices()...)
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0}, got)
}

func TestDropLast(t *testing.T) {
	want := [][]int{{0, 3, 6}, {1, 4, 7}, {2, 5, 8}}
	for rank := range want {
		s, err := NewSampler(10, 3, rank, WithShuffle(false), WithDropLast(true))
		require.NoError(t, err)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, want[rank], s.Indices())
	}

	s, err := NewSampler(2, 4, 0, WithDropLast(true))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Indices())
}

func TestShufflePartition(t *testing.T) {
	var all []int
	for rank := 0; rank < 4; rank++ {
		s, err := NewSampler(20, 4, rank, WithSeed(7))
		require.NoError(t, err)
		s.SetEpoch(3)
		all = append(all, s.Indices()...)
	}
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}
}

func TestEpochChangesOrder(t *testing.T) {
	s, err := NewSampler(100, 2, 1, WithSeed(1))
	require.NoError(t, err)
	first := s.Indices()
	assert.Equal(t, first, s.Indices(), "same epoch repeats")

	s.SetEpoch(1)
	assert.Equal(t, 1, s.Epoch())
	assert.NotEqual(t, first, s.Indices())
}

func TestInvalid(t *testing.T) {
	_, err := NewSampler(10, 0, 0)
	assert.Error(t, err)
	_, err = NewSampler(10, 2, 2)
	assert.Error(t, err)
	_, err = NewSampler(10, 2, -1)
	assert.Error(t, err)
	_, err = NewSampler(-1, 1, 0)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WORLD_SIZE", "4")
	t.Setenv("RANK", "2")
	s, err := NewSamplerFromEnv(8, WithShuffle(false))
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumReplicas())
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, []int{2, 6}, s.Indices())

	t.Setenv("RANK", "x")
	_, err = FromEnv()
	assert.Error(t, err)
}
