package model

import (
	"sort"
)

// Metrics are the binary classification scores reported per evaluation.
// The zero value is the result for "nothing to evaluate".
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	AUC       float64 `json:"auc"`
}

// MeanMetrics averages every field across the given results. An empty slice
// gives the zero Metrics.
func MeanMetrics(all []Metrics) Metrics {
	if len(all) == 0 {
		return Metrics{}
	}

	var sum Metrics
	for _, m := range all {
		sum.Accuracy += m.Accuracy
		sum.Precision += m.Precision
		sum.Recall += m.Recall
		sum.F1 += m.F1
		sum.AUC += m.AUC
	}

	n := float64(len(all))

	return Metrics{
		Accuracy:  sum.Accuracy / n,
		Precision: sum.Precision / n,
		Recall:    sum.Recall / n,
		F1:        sum.F1 / n,
		AUC:       sum.AUC / n,
	}
}

// BinaryMetrics scores predictions against 0/1 ground truth. Ratios with a
// zero denominator are 0. AUC is 0.5 when only one class is present.
func BinaryMetrics(yTrue, yPred []int, scores []float64) Metrics {
	if len(yTrue) == 0 {
		return Metrics{}
	}

	var tp, fp, fn, correct float64
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}

		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}

	m := Metrics{Accuracy: correct / float64(len(yTrue))}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}

	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}

	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	m.AUC = rocAUC(yTrue, scores)

	return m
}

// rocAUC computes the area under the ROC curve with the rank-sum statistic.
// Tied scores share their average rank.
func rocAUC(yTrue []int, scores []float64) float64 {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && scores[order[j+1]] == scores[order[i]] {
			j++
		}

		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}

		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i, y := range yTrue {
		if y == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}

	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}
