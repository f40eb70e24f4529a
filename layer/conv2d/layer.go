// Package conv2d implements a bias-free 2D convolution layer
package conv2d

import "fmt"
import "github.com/neurlang/imgembed/layer"

// Conv2D is a square-kernel 2D convolution with zero padding and no bias.
// Weight layout is [out, in, kernel, kernel].
type Conv2D struct {
	in, out, kernel, stride, padding int

	weight []float32
}

// MustNew creates a new Conv2D layer with channels, kernel size, stride and padding
func MustNew(in, out, kernel, stride, padding int) *Conv2D {
	o, err := New(in, out, kernel, stride, padding)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new Conv2D layer with channels, kernel size, stride and padding
func New(in, out, kernel, stride, padding int) (o *Conv2D, err error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("New Conv2D: channels %d -> %d must be positive", in, out)
	}
	if kernel <= 0 {
		return nil, fmt.Errorf("New Conv2D: Kernel %d must be positive", kernel)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("New Conv2D: Stride %d must be positive", stride)
	}
	if padding < 0 {
		return nil, fmt.Errorf("New Conv2D: Padding %d is negative", padding)
	}
	o = new(Conv2D)
	o.in = in
	o.out = out
	o.kernel = kernel
	o.stride = stride
	o.padding = padding
	o.weight = make([]float32, out*in*kernel*kernel)
	return
}

// Name reports the kind of the layer.
func (f *Conv2D) Name() string {
	return "Conv2D"
}

// In returns the number of input channels.
func (f *Conv2D) In() int { return f.in }

// Out returns the number of output channels.
func (f *Conv2D) Out() int { return f.out }

// Kernel returns the kernel size.
func (f *Conv2D) Kernel() int { return f.kernel }

// Params lists the weight tensor.
func (f *Conv2D) Params() []layer.Param {
	return []layer.Param{{Name: "weight", Shape: []int{f.out, f.in, f.kernel, f.kernel}}}
}

// SetParams copies the weight tensor into the layer.
func (f *Conv2D) SetParams(values map[string][]float32) error {
	if err := layer.CheckValues(f.Name(), f.Params(), values); err != nil {
		return err
	}
	copy(f.weight, values["weight"])
	return nil
}

// Values returns a copy of the weight tensor.
func (f *Conv2D) Values() map[string][]float32 {
	return map[string][]float32{"weight": append([]float32(nil), f.weight...)}
}

var _ layer.Parametrized = (*Conv2D)(nil)
