package weights

import "fmt"
import "strings"

import "github.com/nlpodyssey/gopickle/pytorch"
import "github.com/nlpodyssey/gopickle/types"

// getter is implemented by the pickle dict types.
type getter interface {
	Get(key interface{}) (interface{}, bool)
}

// LoadPyTorch reads a checkpoint written by torch.save. Both a bare state
// dict and a dict wrapping it under "state_dict" are accepted. A "module."
// prefix left by DataParallel is stripped.
func LoadPyTorch(path string) (StateDict, error) {
	v, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("weights: loading %s: %w", path, err)
	}
	od, err := stateDictOf(v)
	if err != nil {
		return nil, fmt.Errorf("weights: %s: %w", path, err)
	}
	sd := make(StateDict, len(od.Map))
	for _, entry := range od.Map {
		name, ok := entry.Key.(string)
		if !ok {
			return nil, fmt.Errorf("weights: %s: non-string key %v", path, entry.Key)
		}
		t, ok := entry.Value.(*pytorch.Tensor)
		if !ok {
			return nil, fmt.Errorf("weights: %s: %s is %T, not a tensor", path, name, entry.Value)
		}
		p, err := fromTensor(t)
		if err != nil {
			return nil, fmt.Errorf("weights: %s: %s: %w", path, name, err)
		}
		sd[strings.TrimPrefix(name, "module.")] = p
	}
	return sd, nil
}

func stateDictOf(v interface{}) (*types.OrderedDict, error) {
	if g, ok := v.(getter); ok {
		if inner, ok := g.Get("state_dict"); ok {
			return stateDictOf(inner)
		}
	}
	if od, ok := v.(*types.OrderedDict); ok {
		return od, nil
	}
	return nil, fmt.Errorf("checkpoint holds %T, not a state dict", v)
}

// fromTensor copies t into a contiguous row-major float32 slice, honoring the
// storage offset and strides of views.
func fromTensor(t *pytorch.Tensor) (Param, error) {
	var at func(i int) float32
	var length int
	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		at, length = func(i int) float32 { return s.Data[i] }, len(s.Data)
	case *pytorch.DoubleStorage:
		at, length = func(i int) float32 { return float32(s.Data[i]) }, len(s.Data)
	case *pytorch.LongStorage:
		at, length = func(i int) float32 { return float32(s.Data[i]) }, len(s.Data)
	default:
		return Param{}, fmt.Errorf("unsupported storage %T", t.Source)
	}
	if len(t.Stride) != len(t.Size) {
		return Param{}, fmt.Errorf("size %v and stride %v differ in rank", t.Size, t.Stride)
	}

	shape := append([]int{}, t.Size...)
	total := 1
	for _, d := range shape {
		total *= d
	}
	data := make([]float32, total)
	idx := make([]int, len(shape))
	for i := 0; i < total; i++ {
		off := t.StorageOffset
		for d := range idx {
			off += idx[d] * t.Stride[d]
		}
		if off < 0 || off >= length {
			return Param{}, fmt.Errorf("element %d at storage offset %d is out of range %d", i, off, length)
		}
		data[i] = at(off)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return Param{Shape: shape, Data: data}, nil
}
