package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// SGDHandler is a binary logistic regression model trained with full-batch
// gradient descent. Labels are 0 or 1.
type SGDHandler struct {
	Dim          int
	LearningRate float64
	L2           float64
	CreateMode   CreateMode
	NUpdates     int
	Weights      Params
}

// NewSGDHandler creates an SGDHandler with zero weights.
func NewSGDHandler(
	dim int,
	learningRate, l2 float64,
	mode CreateMode,
) *SGDHandler {
	h := &SGDHandler{
		Dim:          dim,
		LearningRate: learningRate,
		L2:           l2,
		CreateMode:   mode,
	}
	h.Weights = Params{
		"weight": make([]float64, dim),
		"bias":   make([]float64, 1),
	}

	return h
}

// Init draws small Gaussian weights and a zero bias.
func (h *SGDHandler) Init(rng *rand.Rand) {
	w := h.Weights["weight"]
	for i := range w {
		w[i] = rng.NormFloat64() * 0.01
	}

	h.Weights["bias"][0] = 0
	h.NUpdates = 0
}

func (h *SGDHandler) score(x []float64) float64 {
	w := h.Weights["weight"]
	z := h.Weights["bias"][0]
	for i, v := range x {
		z += w[i] * v
	}

	return 1 / (1 + math.Exp(-z))
}

// Update performs one gradient step on the mean logistic loss.
func (h *SGDHandler) Update(data *Dataset) error {
	if data.Len() == 0 {
		return nil
	}

	if data.Dim() != h.Dim {
		return fmt.Errorf("%w: data has %d features, model expects %d",
			ErrParamMismatch, data.Dim(), h.Dim)
	}

	w := h.Weights["weight"]
	gradW := make([]float64, h.Dim)
	gradB := 0.0

	for i, x := range data.X {
		diff := h.score(x) - data.Y[i]
		for j, v := range x {
			gradW[j] += diff * v
		}
		gradB += diff
	}

	n := float64(data.Len())
	for j := range w {
		w[j] -= h.LearningRate * (gradW[j]/n + h.L2*w[j])
	}
	h.Weights["bias"][0] -= h.LearningRate * gradB / n

	h.NUpdates++

	return nil
}

// Merge averages the parameters with other's.
func (h *SGDHandler) Merge(other Handler) error {
	return h.Weights.AverageWith(other.Params())
}

// Adopt copies other's parameters and update counter.
func (h *SGDHandler) Adopt(other Handler) error {
	if err := h.Weights.MustMatch(other.Params()); err != nil {
		return err
	}

	h.Weights = other.Params().Clone()
	h.NUpdates = other.Updates()

	return nil
}

// Evaluate predicts class 1 when the probability reaches 0.5.
func (h *SGDHandler) Evaluate(data *Dataset) Metrics {
	if data.Len() == 0 || data.Dim() != h.Dim {
		return Metrics{}
	}

	yTrue := make([]int, data.Len())
	yPred := make([]int, data.Len())
	scores := make([]float64, data.Len())

	for i, x := range data.X {
		scores[i] = h.score(x)
		if scores[i] >= 0.5 {
			yPred[i] = 1
		}

		if data.Y[i] > 0.5 {
			yTrue[i] = 1
		}
	}

	return BinaryMetrics(yTrue, yPred, scores)
}

// Size returns the byte size of the parameters.
func (h *SGDHandler) Size() int {
	return h.Weights.Count() * bytesPerParam
}

// Clone returns a deep copy.
func (h *SGDHandler) Clone() Handler {
	c := *h
	c.Weights = h.Weights.Clone()

	return &c
}

// Mode returns the create mode.
func (h *SGDHandler) Mode() CreateMode { return h.CreateMode }

// Updates returns the number of gradient steps taken.
func (h *SGDHandler) Updates() int { return h.NUpdates }

// Params returns the parameter tensors.
func (h *SGDHandler) Params() Params { return h.Weights }
