// Package maxpool2d implements 2D max pooling
package maxpool2d

import "fmt"
import "math"
import "github.com/neurlang/imgembed/layer"
import "gorgonia.org/tensor"

// MaxPool2D takes the maximum over square windows. Padded positions never
// win, as if they held negative infinity.
type MaxPool2D struct {
	kernel, stride, padding int
}

// MustNew creates a new MaxPool2D layer with kernel, stride and padding
func MustNew(kernel, stride, padding int) *MaxPool2D {
	o, err := New(kernel, stride, padding)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new MaxPool2D layer with kernel, stride and padding
func New(kernel, stride, padding int) (*MaxPool2D, error) {
	if kernel <= 0 || stride <= 0 {
		return nil, fmt.Errorf("New MaxPool2D: Kernel %d and Stride %d must be positive", kernel, stride)
	}
	if padding < 0 || 2*padding > kernel {
		return nil, fmt.Errorf("New MaxPool2D: Padding %d must be between 0 and half the kernel %d", padding, kernel)
	}
	return &MaxPool2D{kernel: kernel, stride: stride, padding: padding}, nil
}

// Name reports the kind of the layer.
func (m *MaxPool2D) Name() string {
	return "MaxPool2D"
}

// OutputSize returns the spatial output size for an input of size n.
func (m *MaxPool2D) OutputSize(n int) int {
	return (n+2*m.padding-m.kernel)/m.stride + 1
}

// Forward pools every channel of every image of x.
func (m *MaxPool2D) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := layer.Dims4(x)
	if err != nil {
		return nil, fmt.Errorf("MaxPool2D: %w", err)
	}
	if h+2*m.padding < m.kernel || w+2*m.padding < m.kernel {
		return nil, fmt.Errorf("MaxPool2D: input %dx%d is smaller than kernel %d", h, w, m.kernel)
	}
	oh, ow := m.OutputSize(h), m.OutputSize(w)
	src := x.Float32s()
	dst := make([]float32, n*c*oh*ow)
	for p := 0; p < n*c; p++ {
		plane := src[p*h*w : (p+1)*h*w]
		out := dst[p*oh*ow : (p+1)*oh*ow]
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				best := float32(math.Inf(-1))
				for ki := 0; ki < m.kernel; ki++ {
					iy := oy*m.stride - m.padding + ki
					if iy < 0 || iy >= h {
						continue
					}
					for kj := 0; kj < m.kernel; kj++ {
						ix := ox*m.stride - m.padding + kj
						if ix < 0 || ix >= w {
							continue
						}
						if v := plane[iy*w+ix]; v > best {
							best = v
						}
					}
				}
				out[oy*ow+ox] = best
			}
		}
	}
	return layer.NewDense(dst, n, c, oh, ow), nil
}

var _ layer.Layer = (*MaxPool2D)(nil)
