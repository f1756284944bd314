package model

import (
	"fmt"
	"math/rand/v2"
)

// PegasosHandler is a linear SVM trained with the Pegasos sub-gradient rule.
// Labels are -1 or +1.
type PegasosHandler struct {
	Dim        int
	Lambda     float64
	CreateMode CreateMode
	NUpdates   int
	Weights    Params
}

// NewPegasosHandler creates a PegasosHandler with zero weights.
func NewPegasosHandler(dim int, lambda float64, mode CreateMode) *PegasosHandler {
	return &PegasosHandler{
		Dim:        dim,
		Lambda:     lambda,
		CreateMode: mode,
		Weights:    Params{"weight": make([]float64, dim)},
	}
}

// Init zeroes the weights. Pegasos starts from the origin.
func (h *PegasosHandler) Init(_ *rand.Rand) {
	w := h.Weights["weight"]
	for i := range w {
		w[i] = 0
	}

	h.NUpdates = 0
}

func (h *PegasosHandler) score(x []float64) float64 {
	w := h.Weights["weight"]
	s := 0.0
	for i, v := range x {
		s += w[i] * v
	}

	return s
}

// Update makes one pass over data, one step per sample.
func (h *PegasosHandler) Update(data *Dataset) error {
	if data.Len() == 0 {
		return nil
	}

	if data.Dim() != h.Dim {
		return fmt.Errorf("%w: data has %d features, model expects %d",
			ErrParamMismatch, data.Dim(), h.Dim)
	}

	w := h.Weights["weight"]
	for i, x := range data.X {
		h.NUpdates++
		eta := 1 / (h.Lambda * float64(h.NUpdates))
		y := data.Y[i]
		margin := y * h.score(x)

		for j := range w {
			w[j] *= 1 - eta*h.Lambda
		}

		if margin < 1 {
			for j, v := range x {
				w[j] += eta * y * v
			}
		}
	}

	return nil
}

// Merge averages the parameters with other's.
func (h *PegasosHandler) Merge(other Handler) error {
	return h.Weights.AverageWith(other.Params())
}

// Adopt copies other's parameters and update counter.
func (h *PegasosHandler) Adopt(other Handler) error {
	if err := h.Weights.MustMatch(other.Params()); err != nil {
		return err
	}

	h.Weights = other.Params().Clone()
	h.NUpdates = other.Updates()

	return nil
}

// Evaluate predicts +1 for non-negative scores.
func (h *PegasosHandler) Evaluate(data *Dataset) Metrics {
	if data.Len() == 0 || data.Dim() != h.Dim {
		return Metrics{}
	}

	yTrue := make([]int, data.Len())
	yPred := make([]int, data.Len())
	scores := make([]float64, data.Len())

	for i, x := range data.X {
		scores[i] = h.score(x)
		if scores[i] >= 0 {
			yPred[i] = 1
		}

		if data.Y[i] > 0 {
			yTrue[i] = 1
		}
	}

	return BinaryMetrics(yTrue, yPred, scores)
}

// Size returns the byte size of the parameters.
func (h *PegasosHandler) Size() int {
	return h.Weights.Count() * bytesPerParam
}

// Clone returns a deep copy.
func (h *PegasosHandler) Clone() Handler {
	c := *h
	c.Weights = h.Weights.Clone()

	return &c
}

// Mode returns the create mode.
func (h *PegasosHandler) Mode() CreateMode { return h.CreateMode }

// Updates returns the number of samples processed.
func (h *PegasosHandler) Updates() int { return h.NUpdates }

// Params returns the parameter tensors.
func (h *PegasosHandler) Params() Params { return h.Weights }
