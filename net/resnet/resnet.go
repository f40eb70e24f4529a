// Package resnet implements a residual network backbone: the standard
// ResNet topology with the final fully connected classification layer
// removed, so that Forward yields one embedding per image.
package resnet

import "errors"
import "fmt"
import "strconv"

import "github.com/neurlang/imgembed/layer"
import "github.com/neurlang/imgembed/layer/avgpool"
import "github.com/neurlang/imgembed/layer/batchnorm"
import "github.com/neurlang/imgembed/layer/conv2d"
import "github.com/neurlang/imgembed/layer/maxpool2d"
import "github.com/neurlang/imgembed/layer/relu"
import "gorgonia.org/tensor"

// ErrNotLoaded is returned by Forward before parameters were loaded or initialized.
var ErrNotLoaded = errors.New("resnet: parameters not loaded")

// ResNet is the network without its classification head. After Load or
// Init the parameters are frozen and Forward is a pure function.
type ResNet struct {
	cfg Config

	conv1   *conv2d.Conv2D
	bn1     *batchnorm.BatchNorm
	maxpool *maxpool2d.MaxPool2D
	stages  [4][]block

	body  layer.Sequential
	ready bool
}

// MustNew creates a new network for a named architecture
func MustNew(arch string) *ResNet {
	cfg, err := ConfigFor(arch)
	if err != nil {
		panic(err.Error())
	}
	r, err := New(cfg)
	if err != nil {
		panic(err.Error())
	}
	return r
}

// New builds the layer stack of cfg. Parameters must be set with Load or
// Init before calling Forward.
func New(cfg Config) (*ResNet, error) {
	for i, n := range cfg.Layers {
		if n <= 0 {
			return nil, fmt.Errorf("resnet: stage %d has %d blocks", i+1, n)
		}
	}
	if cfg.Block != Basic && cfg.Block != Bottleneck {
		return nil, fmt.Errorf("resnet: unknown block kind %d", cfg.Block)
	}

	r := &ResNet{cfg: cfg}
	inplanes := 64
	r.conv1 = conv2d.MustNew(3, inplanes, 7, 2, 3)
	r.bn1 = batchnorm.MustNew(inplanes)
	r.maxpool = maxpool2d.MustNew(3, 2, 1)

	r.body = layer.Sequential{r.conv1, r.bn1, relu.ReLU{}, r.maxpool}
	for i, planes := range [4]int{64, 128, 256, 512} {
		stride := 2
		if i == 0 {
			stride = 1
		}
		r.stages[i], inplanes = makeStage(cfg.Block, inplanes, planes, cfg.Layers[i], stride)
		for _, b := range r.stages[i] {
			r.body = append(r.body, b)
		}
	}
	r.body = append(r.body, avgpool.AvgPool{})
	return r, nil
}

// makeStage creates blocks residual blocks; only the first one strides and
// projects the shortcut.
func makeStage(kind BlockKind, inplanes, planes, blocks, stride int) ([]block, int) {
	out := planes * kind.Expansion()
	var down *downsample
	if stride != 1 || inplanes != out {
		down = newDownsample(inplanes, out, stride)
	}
	stage := make([]block, 0, blocks)
	for i := 0; i < blocks; i++ {
		if kind == Bottleneck {
			stage = append(stage, newBottleneckBlock(inplanes, planes, stride, down))
		} else {
			stage = append(stage, newBasicBlock(inplanes, planes, stride, down))
		}
		inplanes, stride, down = out, 1, nil
	}
	return stage, inplanes
}

// Config returns the topology of the network.
func (r *ResNet) Config() Config {
	return r.cfg
}

// OutDim is the width of every embedding returned by Forward.
func (r *ResNet) OutDim() int {
	return r.cfg.OutDim()
}

// Len returns the number of parametrized layers (convolutions and normalizations).
func (r *ResNet) Len() (o int) {
	r.visit(func(string, layer.Parametrized) { o++ })
	return
}

// LenLayers returns the number of residual blocks.
func (r *ResNet) LenLayers() (o int) {
	for _, s := range r.stages {
		o += len(s)
	}
	return
}

// visit walks every parametrized layer in state dict order.
func (r *ResNet) visit(fn visitor) {
	fn("conv1", r.conv1)
	fn("bn1", r.bn1)
	for i, stage := range r.stages {
		for j, b := range stage {
			b.visit("layer"+strconv.Itoa(i+1)+"."+strconv.Itoa(j), fn)
		}
	}
}

// Keys lists every parameter the network expects, with full state dict names.
func (r *ResNet) Keys() (keys []layer.Param) {
	r.visit(func(name string, p layer.Parametrized) {
		for _, q := range p.Params() {
			keys = append(keys, layer.Param{Name: name + "." + q.Name, Shape: q.Shape})
		}
	})
	return
}

// Forward maps a batch of shape [N, 3, H, W] to embeddings of shape [N, OutDim].
// Every image is processed independently, so row i only depends on image i.
func (r *ResNet) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	if !r.ready {
		return nil, ErrNotLoaded
	}
	_, c, _, _, err := layer.Dims4(x)
	if err != nil {
		return nil, fmt.Errorf("resnet: %w", err)
	}
	if c != 3 {
		return nil, fmt.Errorf("resnet: input has %d channels, want 3", c)
	}
	out, err := r.body.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("resnet: %w", err)
	}
	return out, nil
}
