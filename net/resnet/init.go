package resnet

import "math"
import "math/rand"

import "github.com/neurlang/imgembed/layer"
import "github.com/neurlang/imgembed/layer/batchnorm"
import "github.com/neurlang/imgembed/layer/conv2d"

// Init fills the network with the framework's default initialization, seeded
// for reproducibility: Kaiming normal (fan_out, relu gain) convolutions and
// identity normalizations. With zeroInitResidual the last normalization of
// every residual branch gets zero weight, so each block starts as the
// identity. It lets the backbone run without a weight file.
func (r *ResNet) Init(seed int64, zeroInitResidual bool) {
	rng := rand.New(rand.NewSource(seed))
	r.visit(func(name string, p layer.Parametrized) {
		switch l := p.(type) {
		case *conv2d.Conv2D:
			q := l.Params()[0]
			fanOut := q.Shape[0] * q.Shape[2] * q.Shape[3]
			std := math.Sqrt(2 / float64(fanOut))
			w := make([]float32, q.Size())
			for i := range w {
				w[i] = float32(rng.NormFloat64() * std)
			}
			mustSet(l, map[string][]float32{"weight": w})
		case *batchnorm.BatchNorm:
			mustSet(l, identity(l.Channels(), 1))
		}
	})
	if zeroInitResidual {
		for _, stage := range r.stages {
			for _, b := range stage {
				bn := b.last()
				mustSet(bn, identity(bn.Channels(), 0))
			}
		}
	}
	r.ready = true
}

func identity(channels int, weight float32) map[string][]float32 {
	w := make([]float32, channels)
	v := make([]float32, channels)
	for i := range w {
		w[i] = weight
		v[i] = 1
	}
	return map[string][]float32{
		"weight":       w,
		"bias":         make([]float32, channels),
		"running_mean": make([]float32, channels),
		"running_var":  v,
	}
}

func mustSet(p layer.Parametrized, values map[string][]float32) {
	if err := p.SetParams(values); err != nil {
		panic(err.Error())
	}
}
