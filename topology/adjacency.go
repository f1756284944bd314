package topology

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTopology is returned for adjacency structures that are not
// symmetric, contain self-loops, or reference unknown nodes.
var ErrInvalidTopology = errors.New("topology: invalid topology")

// Adjacency stores sorted neighbour lists.
type Adjacency struct {
	N     int
	Neigh [][]int
}

// NewAdjacency creates an empty graph over n nodes.
func NewAdjacency(n int) *Adjacency {
	return &Adjacency{
		N:     n,
		Neigh: make([][]int, n),
	}
}

// Connect adds the undirected edge {i, j}. Connecting a node to itself or
// adding an existing edge does nothing.
func (a *Adjacency) Connect(i, j int) {
	if i == j || a.Connected(i, j) {
		return
	}

	a.Neigh[i] = insertSorted(a.Neigh[i], j)
	a.Neigh[j] = insertSorted(a.Neigh[j], i)
}

func insertSorted(s []int, v int) []int {
	pos, _ := slices.BinarySearch(s, v)

	return slices.Insert(s, pos, v)
}

// Connected tells whether i and j are neighbours.
func (a *Adjacency) Connected(i, j int) bool {
	_, found := slices.BinarySearch(a.Neigh[i], j)

	return found
}

// Degree returns the number of neighbours of i.
func (a *Adjacency) Degree(i int) int {
	return len(a.Neigh[i])
}

// Validate checks the graph invariants.
func (a *Adjacency) Validate() error {
	if len(a.Neigh) != a.N {
		return fmt.Errorf("%w: %d neighbour lists for %d nodes",
			ErrInvalidTopology, len(a.Neigh), a.N)
	}

	for i, neigh := range a.Neigh {
		if !slices.IsSorted(neigh) {
			return fmt.Errorf("%w: neighbours of %d are not sorted",
				ErrInvalidTopology, i)
		}

		for _, j := range neigh {
			if j < 0 || j >= a.N {
				return fmt.Errorf("%w: node %d links to unknown node %d",
					ErrInvalidTopology, i, j)
			}

			if j == i {
				return fmt.Errorf("%w: self-loop on node %d",
					ErrInvalidTopology, i)
			}

			if !a.Connected(j, i) {
				return fmt.Errorf("%w: edge %d-%d is not symmetric",
					ErrInvalidTopology, i, j)
			}
		}
	}

	return nil
}

// FromMatrix builds an adjacency from a dense matrix where any non-zero entry
// is an edge. The matrix must be square and symmetric. Diagonal entries are
// ignored.
func FromMatrix(m [][]float64) (*Adjacency, error) {
	for i, row := range m {
		if len(row) != len(m) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d",
				ErrInvalidTopology, i, len(row), len(m))
		}
	}

	a := NewAdjacency(len(m))

	for i, row := range m {
		for j, v := range row {
			if (v != 0) != (m[j][i] != 0) {
				return nil, fmt.Errorf("%w: entry %d,%d is not symmetric",
					ErrInvalidTopology, i, j)
			}

			if v != 0 {
				a.Connect(i, j)
			}
		}
	}

	return a, nil
}

// Matrix renders the adjacency as a dense 0/1 matrix.
func (a *Adjacency) Matrix() [][]float64 {
	m := make([][]float64, a.N)
	for i := range m {
		m[i] = make([]float64, a.N)
		for _, j := range a.Neigh[i] {
			m[i][j] = 1
		}
	}

	return m
}
