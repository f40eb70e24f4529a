// Package weights loads and stores the parameter mapping of a network: a flat
// map from layer parameter name (e.g. "layer1.0.conv1.weight") to tensor.
package weights

import "fmt"
import "path/filepath"
import "sort"
import "strings"

// Param is one parameter tensor in contiguous row-major order.
type Param struct {
	Shape []int
	Data  []float32
}

// StateDict maps parameter names to tensors. It is treated as immutable once loaded.
type StateDict map[string]Param

// Keys returns the parameter names in lexical order.
func (s StateDict) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the data of parameter name, checking it has the given shape.
func (s StateDict) Lookup(name string, shape []int) ([]float32, error) {
	p, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("weights: missing parameter %s", name)
	}
	if !sameShape(p.Shape, shape) {
		return nil, fmt.Errorf("weights: parameter %s has shape %v, want %v", name, p.Shape, shape)
	}
	return p.Data, nil
}

// Validate checks that every parameter holds as many values as its shape implies.
func (s StateDict) Validate() error {
	for _, k := range s.Keys() {
		p := s[k]
		n := 1
		for _, d := range p.Shape {
			if d < 0 {
				return fmt.Errorf("weights: parameter %s has negative dimension in %v", k, p.Shape)
			}
			n *= d
		}
		if n != len(p.Data) {
			return fmt.Errorf("weights: parameter %s has %d values for shape %v", k, len(p.Data), p.Shape)
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CompressedExt is the extension of the native weight format.
const CompressedExt = ".json.zlib"

// Load reads a weight file, choosing the decoder by file extension:
// PyTorch checkpoints (.pt, .pth) or the native compressed JSON (.json.zlib).
func Load(path string) (StateDict, error) {
	var (
		sd  StateDict
		err error
	)
	switch {
	case strings.HasSuffix(path, CompressedExt):
		sd, err = ReadCompressedFile(path)
	case filepath.Ext(path) == ".pt" || filepath.Ext(path) == ".pth":
		sd, err = LoadPyTorch(path)
	default:
		return nil, fmt.Errorf("weights: unsupported weight file %q (want .pt, .pth or %s)", path, CompressedExt)
	}
	if err != nil {
		return nil, err
	}
	if err := sd.Validate(); err != nil {
		return nil, err
	}
	return sd, nil
}
