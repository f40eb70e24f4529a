package layer

import "fmt"
import "gorgonia.org/tensor"

// Layer is a frozen building block of a network. Activations flow between
// layers as float32 tensors in NCHW layout.
type Layer interface {

	// Name reports the kind of the layer, used in error messages.
	Name() string

	// Forward computes the layer output for the batch x.
	Forward(x *tensor.Dense) (*tensor.Dense, error)
}

// Param describes a named parameter tensor of a layer.
type Param struct {
	Name  string
	Shape []int
}

// Size is the number of scalars held by the parameter.
func (p Param) Size() int {
	return Volume(p.Shape)
}

// Parametrized is a layer which holds parameters loaded from a weight file.
type Parametrized interface {
	Layer

	// Params lists the parameters the layer expects, in a stable order.
	Params() []Param

	// SetParams assigns all parameters at once. Every name reported by
	// Params must be present with exactly Param.Size() values.
	SetParams(values map[string][]float32) error

	// Values returns the current parameters keyed like SetParams expects.
	Values() map[string][]float32
}

// Volume returns the product of dims. The volume of a scalar shape is 1.
func Volume(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// NewDense wraps data into a float32 tensor of the given shape.
func NewDense(data []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Dims4 returns the NCHW dimensions of x.
func Dims4(x *tensor.Dense) (n, c, h, w int, err error) {
	if x == nil {
		return 0, 0, 0, 0, fmt.Errorf("nil input")
	}
	s := x.Shape()
	if len(s) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected NCHW input, got shape %v", []int(s))
	}
	return s[0], s[1], s[2], s[3], nil
}

// CheckValues checks that values holds every parameter of params with the right size.
func CheckValues(name string, params []Param, values map[string][]float32) error {
	for _, p := range params {
		v, ok := values[p.Name]
		if !ok {
			return fmt.Errorf("%s: missing parameter %s", name, p.Name)
		}
		if len(v) != p.Size() {
			return fmt.Errorf("%s: parameter %s has %d values, want %d %v", name, p.Name, len(v), p.Size(), p.Shape)
		}
	}
	return nil
}
