package conv2d

import (
	"math"
	"math/rand"
	"testing"

	"github.com/neurlang/imgembed/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// direct is the textbook convolution used as a reference.
func direct(f *Conv2D, src []float32, n, c, h, w int) []float32 {
	oh, ow := f.OutputSize(h), f.OutputSize(w)
	out := make([]float32, n*f.out*oh*ow)
	for b := 0; b < n; b++ {
		for o := 0; o < f.out; o++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					var sum float64
					for ch := 0; ch < c; ch++ {
						for ki := 0; ki < f.kernel; ki++ {
							for kj := 0; kj < f.kernel; kj++ {
								iy := oy*f.stride - f.padding + ki
								ix := ox*f.stride - f.padding + kj
								if iy < 0 || iy >= h || ix < 0 || ix >= w {
									continue
								}
								wv := f.weight[((o*c+ch)*f.kernel+ki)*f.kernel+kj]
								sum += float64(wv) * float64(src[((b*c+ch)*h+iy)*w+ix])
							}
						}
					}
					out[((b*f.out+o)*oh+oy)*ow+ox] = float32(sum)
				}
			}
		}
	}
	return out
}

func random(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestForwardMatchesDirect(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ in, out, kernel, stride, padding, size int }{
		{3, 4, 7, 2, 3, 11},
		{4, 4, 3, 1, 1, 5},
		{4, 8, 3, 2, 1, 6},
		{8, 2, 1, 2, 0, 5},
	} {
		f := MustNew(tc.in, tc.out, tc.kernel, tc.stride, tc.padding)
		require.NoError(t, f.SetParams(map[string][]float32{"weight": random(r, tc.out*tc.in*tc.kernel*tc.kernel)}))

		const n = 2
		src := random(r, n*tc.in*tc.size*tc.size)
		got, err := f.Forward(layer.NewDense(append([]float32(nil), src...), n, tc.in, tc.size, tc.size))
		require.NoError(t, err)

		o := f.OutputSize(tc.size)
		assert.Equal(t, []int{n, tc.out, o, o}, []int(got.Shape()))

		want := direct(f, src, n, tc.in, tc.size, tc.size)
		for i, v := range got.Float32s() {
			if math.Abs(float64(v-want[i])) > 1e-3 {
				t.Fatalf("case %+v: output %d = %v, want %v", tc, i, v, want[i])
			}
		}
	}
}

func TestForwardErrors(t *testing.T) {
	f := MustNew(3, 2, 3, 1, 0)

	_, err := f.Forward(layer.NewDense(make([]float32, 4*2*2), 1, 4, 2, 2))
	assert.Error(t, err, "channel mismatch")

	_, err = f.Forward(layer.NewDense(make([]float32, 3*2*2), 1, 3, 2, 2))
	assert.Error(t, err, "kernel larger than input")

	_, err = f.Forward(layer.NewDense(make([]float32, 12), 3, 4))
	assert.Error(t, err, "not NCHW")
}

func TestNewRejectsBadGeometry(t *testing.T) {
	_, err := New(0, 1, 3, 1, 1)
	assert.Error(t, err)
	_, err = New(1, 1, 3, 0, 1)
	assert.Error(t, err)
	_, err = New(1, 1, 3, 1, -1)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(1, 1, 0, 1, 0) })
}

func TestSetParamsChecksSize(t *testing.T) {
	f := MustNew(2, 2, 3, 1, 1)
	assert.Error(t, f.SetParams(map[string][]float32{"weight": make([]float32, 5)}))
	assert.Error(t, f.SetParams(map[string][]float32{}))
}
