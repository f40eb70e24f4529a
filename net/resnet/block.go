package resnet

import "fmt"
import "github.com/neurlang/imgembed/layer"
import "github.com/neurlang/imgembed/layer/batchnorm"
import "github.com/neurlang/imgembed/layer/conv2d"
import "github.com/neurlang/imgembed/layer/relu"
import "gorgonia.org/tensor"

// visitor receives every parametrized layer with its state dict prefix.
type visitor func(name string, p layer.Parametrized)

// block is a residual block: relu(branch(x) + shortcut(x)).
type block interface {
	layer.Layer

	visit(prefix string, fn visitor)

	// last is the final normalization of the residual branch.
	last() *batchnorm.BatchNorm
}

// downsample projects the shortcut when the block changes shape.
type downsample struct {
	conv *conv2d.Conv2D
	bn   *batchnorm.BatchNorm
}

func newDownsample(in, out, stride int) *downsample {
	return &downsample{
		conv: conv2d.MustNew(in, out, 1, stride, 0),
		bn:   batchnorm.MustNew(out),
	}
}

func (d *downsample) forward(x *tensor.Dense) (*tensor.Dense, error) {
	return layer.Sequential{d.conv, d.bn}.Forward(x)
}

func (d *downsample) visit(prefix string, fn visitor) {
	fn(prefix+".downsample.0", d.conv)
	fn(prefix+".downsample.1", d.bn)
}

// basicBlock is conv3x3, bn, relu, conv3x3, bn.
type basicBlock struct {
	conv1, conv2 *conv2d.Conv2D
	bn1, bn2     *batchnorm.BatchNorm
	down         *downsample
}

func newBasicBlock(inplanes, planes, stride int, down *downsample) *basicBlock {
	return &basicBlock{
		conv1: conv2d.MustNew(inplanes, planes, 3, stride, 1),
		bn1:   batchnorm.MustNew(planes),
		conv2: conv2d.MustNew(planes, planes, 3, 1, 1),
		bn2:   batchnorm.MustNew(planes),
		down:  down,
	}
}

func (b *basicBlock) Name() string { return Basic.String() }

func (b *basicBlock) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	out, err := layer.Sequential{b.conv1, b.bn1, relu.ReLU{}, b.conv2, b.bn2}.Forward(x)
	if err != nil {
		return nil, err
	}
	return shortcut(out, x, b.down)
}

func (b *basicBlock) visit(prefix string, fn visitor) {
	fn(prefix+".conv1", b.conv1)
	fn(prefix+".bn1", b.bn1)
	fn(prefix+".conv2", b.conv2)
	fn(prefix+".bn2", b.bn2)
	if b.down != nil {
		b.down.visit(prefix, fn)
	}
}

func (b *basicBlock) last() *batchnorm.BatchNorm { return b.bn2 }

// bottleneckBlock is conv1x1, bn, relu, conv3x3 (strided), bn, relu, conv1x1, bn.
type bottleneckBlock struct {
	conv1, conv2, conv3 *conv2d.Conv2D
	bn1, bn2, bn3       *batchnorm.BatchNorm
	down                *downsample
}

func newBottleneckBlock(inplanes, planes, stride int, down *downsample) *bottleneckBlock {
	out := planes * Bottleneck.Expansion()
	return &bottleneckBlock{
		conv1: conv2d.MustNew(inplanes, planes, 1, 1, 0),
		bn1:   batchnorm.MustNew(planes),
		conv2: conv2d.MustNew(planes, planes, 3, stride, 1),
		bn2:   batchnorm.MustNew(planes),
		conv3: conv2d.MustNew(planes, out, 1, 1, 0),
		bn3:   batchnorm.MustNew(out),
		down:  down,
	}
}

func (b *bottleneckBlock) Name() string { return Bottleneck.String() }

func (b *bottleneckBlock) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	out, err := layer.Sequential{
		b.conv1, b.bn1, relu.ReLU{},
		b.conv2, b.bn2, relu.ReLU{},
		b.conv3, b.bn3,
	}.Forward(x)
	if err != nil {
		return nil, err
	}
	return shortcut(out, x, b.down)
}

func (b *bottleneckBlock) visit(prefix string, fn visitor) {
	fn(prefix+".conv1", b.conv1)
	fn(prefix+".bn1", b.bn1)
	fn(prefix+".conv2", b.conv2)
	fn(prefix+".bn2", b.bn2)
	fn(prefix+".conv3", b.conv3)
	fn(prefix+".bn3", b.bn3)
	if b.down != nil {
		b.down.visit(prefix, fn)
	}
}

func (b *bottleneckBlock) last() *batchnorm.BatchNorm { return b.bn3 }

// shortcut adds the (projected) block input to the branch output in place and
// applies relu.
func shortcut(out, x *tensor.Dense, down *downsample) (*tensor.Dense, error) {
	identity := x
	if down != nil {
		var err error
		identity, err = down.forward(x)
		if err != nil {
			return nil, err
		}
	}
	o, id := out.Float32s(), identity.Float32s()
	if len(o) != len(id) {
		return nil, fmt.Errorf("residual shape %v does not match shortcut %v", []int(out.Shape()), []int(identity.Shape()))
	}
	for i := range o {
		o[i] += id[i]
	}
	relu.Apply(o)
	return out, nil
}
