package fl

import (
	"fmt"
	"slices"
)

// Tensor is a dense row-major array of float64 values with a fixed shape.
// A tensor with an empty shape is a scalar holding a single value.
type Tensor struct {
	Shape []int     `json:"shape" cbor:"shape"`
	Data  []float64 `json:"data"  cbor:"data"`
}

// NewTensor validates that data fills shape exactly.
func NewTensor(shape []int, data []float64) (Tensor, error) {
	t := Tensor{Shape: slices.Clone(shape), Data: slices.Clone(data)}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}

	return t, nil
}

// Zeros returns a tensor of the given shape filled with zeros.
func Zeros(shape ...int) Tensor {
	t := Tensor{Shape: slices.Clone(shape)}
	t.Data = make([]float64, t.Size())

	return t
}

// Size is the number of elements implied by the shape.
func (t Tensor) Size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}

	return n
}

func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension in shape %v", ErrInvalidTensor, t.Shape)
		}
	}
	if len(t.Data) != t.Size() {
		return fmt.Errorf("%w: shape %v wants %d values, got %d", ErrInvalidTensor, t.Shape, t.Size(), len(t.Data))
	}

	return nil
}

func (t Tensor) SameShape(o Tensor) bool {
	return slices.Equal(t.Shape, o.Shape)
}

func (t Tensor) Clone() Tensor {
	return Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// WeightSet is the ordered list of a model's learnable tensors.
type WeightSet []Tensor

// Compatible reports whether both sets have the same length and
// pairwise identical tensor shapes.
func (ws WeightSet) Compatible(o WeightSet) bool {
	if len(ws) != len(o) {
		return false
	}
	for i := range ws {
		if !ws[i].SameShape(o[i]) {
			return false
		}
	}

	return true
}

func (ws WeightSet) Validate() error {
	for i, t := range ws {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
	}

	return nil
}

// NumParams is the total element count over all tensors.
func (ws WeightSet) NumParams() int {
	n := 0
	for _, t := range ws {
		n += t.Size()
	}

	return n
}

func (ws WeightSet) Shapes() [][]int {
	shapes := make([][]int, len(ws))
	for i, t := range ws {
		shapes[i] = slices.Clone(t.Shape)
	}

	return shapes
}

func (ws WeightSet) Clone() WeightSet {
	if ws == nil {
		return nil
	}
	out := make(WeightSet, len(ws))
	for i, t := range ws {
		out[i] = t.Clone()
	}

	return out
}
