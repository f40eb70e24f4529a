package bruteforce

import (
	"testing"

	"github.com/neurlang/imgembed/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet(t *testing.T) *embedding.Set {
	s := embedding.New(2)
	require.NoError(t, s.Append("east", []float32{1, 0}))
	require.NoError(t, s.Append("north", []float32{0, 3}))
	require.NoError(t, s.Append("east-again", []float32{5, 0}))
	require.NoError(t, s.Append("blank", []float32{0, 0}))
	require.NoError(t, s.Append("north-east", []float32{1, 1}))
	return s
}

func TestQueryRanksByCosine(t *testing.T) {
	idx, err := Build(testSet(t))
	require.NoError(t, err)
	assert.Equal(t, 5, idx.Len())

	hits, err := idx.Query([]float32{2, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "east", hits[0].Path)
	assert.Equal(t, "east-again", hits[1].Path)
	assert.Equal(t, "north-east", hits[2].Path)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-12)
	assert.InDelta(t, 0.7071067811865476, hits[2].Score, 1e-12)
}

func TestQueryAllSkipsZeroRows(t *testing.T) {
	idx, err := Build(testSet(t))
	require.NoError(t, err)
	hits, err := idx.Query([]float32{0, 1}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, 1, hits[0].Index)
	for _, h := range hits {
		assert.NotEqual(t, "blank", h.Path)
	}
}

func TestQueryEdgeCases(t *testing.T) {
	idx, err := Build(testSet(t))
	require.NoError(t, err)

	_, err = idx.Query([]float32{1, 2, 3}, 1)
	assert.Error(t, err)

	hits, err := idx.Query([]float32{0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)

	empty, err := Build(embedding.New(2))
	require.NoError(t, err)
	hits, err = empty.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
