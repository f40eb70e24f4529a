// Package batchnorm implements inference-mode 2D batch normalization
package batchnorm

import "fmt"
import "math"
import "github.com/neurlang/imgembed/layer"
import "gorgonia.org/tensor"

// Eps is the variance epsilon, the framework default.
const Eps = 1e-5

// BatchNorm normalizes every channel with running statistics:
//
//	y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// The affine transform is folded into scale and shift when the parameters are set.
type BatchNorm struct {
	channels int
	eps      float64

	weight, bias, mean, variance []float32
	scale, shift                 []float32
}

// MustNew creates a new BatchNorm layer over channels
func MustNew(channels int) *BatchNorm {
	o, err := New(channels)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new BatchNorm layer over channels. Parameters start as the
// identity transform (weight 1, bias 0, mean 0, var 1).
func New(channels int) (*BatchNorm, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("New BatchNorm: Channels %d must be positive", channels)
	}
	o := &BatchNorm{channels: channels, eps: Eps}
	o.weight = fill(channels, 1)
	o.bias = fill(channels, 0)
	o.mean = fill(channels, 0)
	o.variance = fill(channels, 1)
	o.fold()
	return o, nil
}

func fill(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Name reports the kind of the layer.
func (b *BatchNorm) Name() string {
	return "BatchNorm2d"
}

// Channels returns the number of normalized channels.
func (b *BatchNorm) Channels() int {
	return b.channels
}

// Params lists the affine parameters and running statistics.
func (b *BatchNorm) Params() []layer.Param {
	shape := []int{b.channels}
	return []layer.Param{
		{Name: "weight", Shape: shape},
		{Name: "bias", Shape: shape},
		{Name: "running_mean", Shape: shape},
		{Name: "running_var", Shape: shape},
	}
}

// SetParams copies the four per-channel tensors and refolds scale and shift.
func (b *BatchNorm) SetParams(values map[string][]float32) error {
	if err := layer.CheckValues(b.Name(), b.Params(), values); err != nil {
		return err
	}
	for i, v := range values["running_var"] {
		if v < 0 {
			return fmt.Errorf("%s: running_var[%d] = %v is negative", b.Name(), i, v)
		}
	}
	copy(b.weight, values["weight"])
	copy(b.bias, values["bias"])
	copy(b.mean, values["running_mean"])
	copy(b.variance, values["running_var"])
	b.fold()
	return nil
}

// Values returns copies of the four per-channel tensors.
func (b *BatchNorm) Values() map[string][]float32 {
	return map[string][]float32{
		"weight":       append([]float32(nil), b.weight...),
		"bias":         append([]float32(nil), b.bias...),
		"running_mean": append([]float32(nil), b.mean...),
		"running_var":  append([]float32(nil), b.variance...),
	}
}

// fold precomputes the per-channel scale and shift.
func (b *BatchNorm) fold() {
	b.scale = make([]float32, b.channels)
	b.shift = make([]float32, b.channels)
	for c := 0; c < b.channels; c++ {
		s := float64(b.weight[c]) / math.Sqrt(float64(b.variance[c])+b.eps)
		b.scale[c] = float32(s)
		b.shift[c] = float32(float64(b.bias[c]) - float64(b.mean[c])*s)
	}
}

// Forward normalizes x into a new tensor.
func (b *BatchNorm) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := layer.Dims4(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if c != b.channels {
		return nil, fmt.Errorf("%s: input has %d channels, want %d", b.Name(), c, b.channels)
	}
	src := x.Float32s()
	dst := make([]float32, len(src))
	plane := h * w
	for i := 0; i < n; i++ {
		for ch := 0; ch < c; ch++ {
			off := (i*c + ch) * plane
			s, t := b.scale[ch], b.shift[ch]
			for j, v := range src[off : off+plane] {
				dst[off+j] = v*s + t
			}
		}
	}
	return layer.NewDense(dst, n, c, h, w), nil
}

var _ layer.Parametrized = (*BatchNorm)(nil)
