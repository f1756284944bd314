package topology

import (
	"fmt"
	"math/rand/v2"
)

// Network tells each node who its peers are.
type Network interface {
	// Size returns the number of nodes.
	Size() int

	// Peers returns the neighbours of node i. A nil result means the node
	// may contact any other node.
	Peers(i int) []int

	// Refresh gives the network a chance to change at tick t. It reports
	// whether the peer sets changed.
	Refresh(t int, rng *rand.Rand) (bool, error)
}

// StaticNetwork never changes. A nil adjacency means fully connected.
type StaticNetwork struct {
	N   int
	Adj *Adjacency
}

// NewStaticNetwork validates adj and wraps it. Pass a nil adj for a fully
// connected population of n nodes.
func NewStaticNetwork(n int, adj *Adjacency) (*StaticNetwork, error) {
	if adj != nil {
		if adj.N != n {
			return nil, fmt.Errorf("%w: adjacency over %d nodes, network of %d",
				ErrInvalidTopology, adj.N, n)
		}

		if err := adj.Validate(); err != nil {
			return nil, err
		}
	}

	return &StaticNetwork{N: n, Adj: adj}, nil
}

// Size returns the number of nodes.
func (s *StaticNetwork) Size() int { return s.N }

// Peers returns a copy of the neighbours of i, or nil when unrestricted.
// An isolated node gets an empty, non-nil slice.
func (s *StaticNetwork) Peers(i int) []int {
	if s.Adj == nil {
		return nil
	}

	return copyPeers(s.Adj.Neigh[i])
}

func copyPeers(neigh []int) []int {
	peers := make([]int, len(neigh))
	copy(peers, neigh)

	return peers
}

// Refresh does nothing.
func (s *StaticNetwork) Refresh(int, *rand.Rand) (bool, error) {
	return false, nil
}

// DynamicNetwork replaces its adjacency with a freshly generated one every
// Period ticks.
type DynamicNetwork struct {
	N         int
	Period    int
	Adj       *Adjacency
	generator Generator
}

// NewDynamicNetwork draws the initial adjacency from gen.
func NewDynamicNetwork(
	n, period int,
	gen Generator,
	rng *rand.Rand,
) (*DynamicNetwork, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: refresh period %d", ErrInvalidTopology, period)
	}

	d := &DynamicNetwork{N: n, Period: period, generator: gen}
	if err := d.regenerate(rng); err != nil {
		return nil, err
	}

	return d, nil
}

// SetGenerator installs the generator after a network has been restored
// from a checkpoint, since functions are not serializable.
func (d *DynamicNetwork) SetGenerator(gen Generator) {
	d.generator = gen
}

func (d *DynamicNetwork) regenerate(rng *rand.Rand) error {
	if d.generator == nil {
		return fmt.Errorf("%w: dynamic network has no generator",
			ErrInvalidTopology)
	}

	adj, err := d.generator(rng)
	if err != nil {
		return err
	}

	if adj.N != d.N {
		return fmt.Errorf("%w: generated %d nodes, want %d",
			ErrInvalidTopology, adj.N, d.N)
	}

	if err := adj.Validate(); err != nil {
		return err
	}

	d.Adj = adj

	return nil
}

// Size returns the number of nodes.
func (d *DynamicNetwork) Size() int { return d.N }

// Peers returns a copy of the current neighbours of i.
func (d *DynamicNetwork) Peers(i int) []int {
	return copyPeers(d.Adj.Neigh[i])
}

// Refresh regenerates the adjacency on every positive multiple of Period.
func (d *DynamicNetwork) Refresh(t int, rng *rand.Rand) (bool, error) {
	if t == 0 || t%d.Period != 0 {
		return false, nil
	}

	if err := d.regenerate(rng); err != nil {
		return false, err
	}

	return true, nil
}

var (
	_ Network = (*StaticNetwork)(nil)
	_ Network = (*DynamicNetwork)(nil)
)
