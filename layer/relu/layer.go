// Package relu implements the rectified linear unit
package relu

import "github.com/neurlang/imgembed/layer"
import "gorgonia.org/tensor"

// ReLU clamps negative activations to zero. It works in place and returns
// its input.
type ReLU struct{}

// Name reports the kind of the layer.
func (ReLU) Name() string {
	return "ReLU"
}

// Forward applies max(0, x) to every element of x.
func (ReLU) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	Apply(x.Float32s())
	return x, nil
}

// Apply clamps v in place.
func Apply(v []float32) {
	for i, f := range v {
		if f < 0 {
			v[i] = 0
		}
	}
}

var _ layer.Layer = ReLU{}
