package data

import (
	"math"
	"math/rand/v2"

	"github.com/sarchlab/gossiplearn/model"
)

// LabelScheme selects the label values of a generated dataset.
type LabelScheme int

// Label schemes.
const (
	// ZeroOne labels samples 0 or 1, as logistic models expect.
	ZeroOne LabelScheme = iota
	// PlusMinusOne labels samples -1 or +1, as SVMs expect.
	PlusMinusOne
)

// Separable draws n linearly separable samples in dim dimensions. Every
// sample is labelled by the side of a random hyperplane through the origin
// it falls on, and pushed away from the plane by margin.
func Separable(
	n, dim int,
	margin float64,
	labels LabelScheme,
	rng *rand.Rand,
) *model.Dataset {
	normal := make([]float64, dim)
	norm := 0.0
	for i := range normal {
		normal[i] = rng.NormFloat64()
		norm += normal[i] * normal[i]
	}
	norm = math.Sqrt(norm)

	ds := &model.Dataset{
		X: make([][]float64, n),
		Y: make([]float64, n),
	}

	for s := 0; s < n; s++ {
		x := make([]float64, dim)
		dot := 0.0
		for i := range x {
			x[i] = rng.NormFloat64()
			dot += x[i] * normal[i]
		}

		side := 1.0
		if dot < 0 {
			side = -1
		}

		// Shift along the normal so the sample sits at least margin away.
		shift := side * margin / norm
		for i := range x {
			x[i] += shift * normal[i]
		}

		ds.X[s] = x
		ds.Y[s] = label(side, labels)
	}

	return ds
}

func label(side float64, scheme LabelScheme) float64 {
	if scheme == PlusMinusOne {
		return side
	}

	if side > 0 {
		return 1
	}

	return 0
}
