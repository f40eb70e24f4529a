// Package avgpool implements global average pooling with flattening
package avgpool

import "fmt"
import "github.com/neurlang/imgembed/layer"
import "gorgonia.org/tensor"

// AvgPool averages every channel over its whole plane (adaptive pooling to
// 1x1) and flattens the result to [N, C].
type AvgPool struct{}

// Name reports the kind of the layer.
func (AvgPool) Name() string {
	return "AdaptiveAvgPool2d"
}

// Forward reduces x of shape [N, C, H, W] to [N, C].
func (a AvgPool) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := layer.Dims4(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}
	plane := h * w
	if plane == 0 {
		return nil, fmt.Errorf("%s: empty %dx%d plane", a.Name(), h, w)
	}
	src := x.Float32s()
	dst := make([]float32, n*c)
	for p := range dst {
		var sum float64
		for _, v := range src[p*plane : (p+1)*plane] {
			sum += float64(v)
		}
		dst[p] = float32(sum / float64(plane))
	}
	return layer.NewDense(dst, n, c), nil
}

var _ layer.Layer = AvgPool{}
