package model

// Dataset is a dense feature matrix with one label per row.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of samples. A nil dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}

	return len(d.Y)
}

// Dim returns the number of features, or 0 for an empty dataset.
func (d *Dataset) Dim() int {
	if d.Len() == 0 {
		return 0
	}

	return len(d.X[0])
}

// Subset returns the rows at the given indices. Rows are shared, not copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	sub := &Dataset{
		X: make([][]float64, 0, len(indices)),
		Y: make([]float64, 0, len(indices)),
	}

	for _, i := range indices {
		sub.X = append(sub.X, d.X[i])
		sub.Y = append(sub.Y, d.Y[i])
	}

	return sub
}
