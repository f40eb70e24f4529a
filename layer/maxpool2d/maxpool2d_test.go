package maxpool2d

import (
	"testing"

	"github.com/neurlang/imgembed/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPadsWithNegativeInfinity(t *testing.T) {
	m := MustNew(3, 2, 1)
	// all negative so that a zero padding value would wrongly win
	x := layer.NewDense([]float32{
		-1, -2, -3, -4,
		-5, -6, -7, -8,
		-9, -10, -11, -12,
		-13, -14, -15, -16,
	}, 1, 1, 4, 4)
	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, []int(y.Shape()))
	assert.Equal(t, []float32{-1, -2, -5, -6}, y.Float32s())
}

func TestOutputSizeMatchesStem(t *testing.T) {
	m := MustNew(3, 2, 1)
	assert.Equal(t, 56, m.OutputSize(112))
	assert.Equal(t, 1, m.OutputSize(1))
}

func TestNewRejectsOversizedPadding(t *testing.T) {
	_, err := New(3, 2, 2)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(0, 1, 0) })
}
