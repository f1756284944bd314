package topology

import (
	"fmt"
	"math/rand/v2"
)

// Generator creates a new adjacency. Dynamic networks call it periodically.
type Generator func(rng *rand.Rand) (*Adjacency, error)

// FullyConnected links every pair of nodes.
func FullyConnected(n int) *Adjacency {
	a := NewAdjacency(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a.Connect(i, j)
		}
	}

	return a
}

// Ring links every node to its k nearest nodes on each side.
func Ring(n, k int) (*Adjacency, error) {
	if k < 1 || 2*k >= n {
		return nil, fmt.Errorf("%w: ring of %d nodes cannot have %d "+
			"neighbours per side", ErrInvalidTopology, n, k)
	}

	a := NewAdjacency(n)
	for i := 0; i < n; i++ {
		for d := 1; d <= k; d++ {
			a.Connect(i, (i+d)%n)
		}
	}

	return a, nil
}

// Star links every node to center only. It models a federated deployment
// where one node acts as the aggregation server.
func Star(n, center int) (*Adjacency, error) {
	if center < 0 || center >= n {
		return nil, fmt.Errorf("%w: center %d out of %d nodes",
			ErrInvalidTopology, center, n)
	}

	a := NewAdjacency(n)
	for i := 0; i < n; i++ {
		a.Connect(center, i)
	}

	return a, nil
}

// ErdosRenyi links every pair independently with probability p.
func ErdosRenyi(n int, p float64, rng *rand.Rand) (*Adjacency, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: edge probability %g", ErrInvalidTopology, p)
	}

	a := NewAdjacency(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < p {
				a.Connect(i, j)
			}
		}
	}

	return a, nil
}

const maxRegularAttempts = 1000

// RandomRegular draws a d-regular graph with the pairing model, retrying
// until the pairing has no self-loops or repeated edges.
func RandomRegular(n, d int, rng *rand.Rand) (*Adjacency, error) {
	if d < 0 || d >= n || (n*d)%2 != 0 {
		return nil, fmt.Errorf("%w: no %d-regular graph on %d nodes",
			ErrInvalidTopology, d, n)
	}

	for attempt := 0; attempt < maxRegularAttempts; attempt++ {
		if a, ok := tryPairing(n, d, rng); ok {
			return a, nil
		}
	}

	return nil, fmt.Errorf("%w: failed to draw a %d-regular graph on %d nodes",
		ErrInvalidTopology, d, n)
}

func tryPairing(n, d int, rng *rand.Rand) (*Adjacency, bool) {
	stubs := make([]int, 0, n*d)
	for i := 0; i < n; i++ {
		for k := 0; k < d; k++ {
			stubs = append(stubs, i)
		}
	}

	rng.Shuffle(len(stubs), func(i, j int) {
		stubs[i], stubs[j] = stubs[j], stubs[i]
	})

	a := NewAdjacency(n)
	for i := 0; i < len(stubs); i += 2 {
		u, v := stubs[i], stubs[i+1]
		if u == v || a.Connected(u, v) {
			return nil, false
		}

		a.Connect(u, v)
	}

	return a, true
}
