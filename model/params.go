package model

import (
	"fmt"
	"slices"
)

// Params maps a tensor name to its flattened values.
type Params map[string][]float64

// Clone deep-copies all tensors.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = slices.Clone(v)
	}

	return c
}

// Count returns the total number of scalar parameters.
func (p Params) Count() int {
	n := 0
	for _, v := range p {
		n += len(v)
	}

	return n
}

// Equal tells whether both sets have the same tensors with identical values.
func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}

	for k, v := range p {
		w, ok := o[k]
		if !ok || !slices.Equal(v, w) {
			return false
		}
	}

	return true
}

// MustMatch returns ErrParamMismatch unless both sets have the same tensor
// names with the same lengths.
func (p Params) MustMatch(o Params) error {
	if len(p) != len(o) {
		return fmt.Errorf("%w: %d tensors vs %d",
			ErrParamMismatch, len(p), len(o))
	}

	for k, v := range p {
		w, ok := o[k]
		if !ok {
			return fmt.Errorf("%w: tensor %q missing", ErrParamMismatch, k)
		}

		if len(v) != len(w) {
			return fmt.Errorf("%w: tensor %q has %d values vs %d",
				ErrParamMismatch, k, len(v), len(w))
		}
	}

	return nil
}

// AverageWith replaces every tensor in p with the element-wise mean of p and
// o.
func (p Params) AverageWith(o Params) error {
	if err := p.MustMatch(o); err != nil {
		return err
	}

	for k, v := range p {
		w := o[k]
		for i := range v {
			v[i] = (v[i] + w[i]) / 2
		}
	}

	return nil
}
