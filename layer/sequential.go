// Package layer defines the layer interface shared by the network building
// blocks and a few helpers for float32 NCHW tensors.
//
// Layers never keep state between calls to Forward. Parameters are set once,
// before the first Forward, and are read-only afterwards, so a single layer
// may serve concurrent callers.
package layer

import "gorgonia.org/tensor"

// Sequential chains layers, feeding the output of each into the next.
type Sequential []Layer

// Name reports the kind of the layer.
func (s Sequential) Name() string {
	return "Sequential"
}

// Forward runs x through every layer in order.
func (s Sequential) Forward(x *tensor.Dense) (out *tensor.Dense, err error) {
	out = x
	for _, l := range s {
		out, err = l.Forward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
