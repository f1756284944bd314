// Package data splits a dataset across the nodes of a simulation.
package data

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/gossiplearn/model"
)

// ErrInvalidSplit is returned when a dataset cannot be divided as requested.
var ErrInvalidSplit = errors.New("data: invalid split")

// Dispatcher hands every node its private shard.
type Dispatcher interface {
	// Size returns the number of nodes served.
	Size() int

	// Shard returns the train and test data of node i. Test is nil when the
	// dispatcher keeps no local test data.
	Shard(i int) (train, test *model.Dataset)

	// HasTest tells whether nodes have local test shards.
	HasTest() bool

	// EvalSet returns the global held-out set, or nil if there is none.
	EvalSet() *model.Dataset
}

// ClassificationDispatcher splits a labelled dataset into a global
// evaluation set and one shard per node.
type ClassificationDispatcher struct {
	Train []*model.Dataset
	Test  []*model.Dataset
	Eval  *model.Dataset
}

// DispatchOptions controls a classification split.
type DispatchOptions struct {
	// Nodes is the number of shards.
	Nodes int

	// EvalFraction is the share of samples held out as the global
	// evaluation set.
	EvalFraction float64

	// LocalTestFraction is the share of each node's samples kept as the
	// node's own test shard.
	LocalTestFraction float64
}

// NewClassificationDispatcher permutes ds with rng, holds out the
// evaluation set, and deals the remaining samples to the nodes in
// contiguous blocks whose sizes differ by at most one.
func NewClassificationDispatcher(
	ds *model.Dataset,
	opts DispatchOptions,
	rng *rand.Rand,
) (*ClassificationDispatcher, error) {
	if err := checkOptions(ds, opts); err != nil {
		return nil, err
	}

	perm := rng.Perm(ds.Len())
	nEval := int(float64(ds.Len())*opts.EvalFraction + 0.5)

	d := &ClassificationDispatcher{
		Train: make([]*model.Dataset, opts.Nodes),
	}

	if nEval > 0 {
		d.Eval = ds.Subset(perm[:nEval])
	}

	rest := perm[nEval:]
	if len(rest) < opts.Nodes {
		return nil, fmt.Errorf("%w: %d training samples for %d nodes",
			ErrInvalidSplit, len(rest), opts.Nodes)
	}

	if opts.LocalTestFraction > 0 {
		d.Test = make([]*model.Dataset, opts.Nodes)
	}

	for i := 0; i < opts.Nodes; i++ {
		lo := i * len(rest) / opts.Nodes
		hi := (i + 1) * len(rest) / opts.Nodes
		block := rest[lo:hi]

		nTest := int(float64(len(block)) * opts.LocalTestFraction)
		d.Train[i] = ds.Subset(block[nTest:])

		if d.Test != nil {
			d.Test[i] = ds.Subset(block[:nTest])
		}
	}

	return d, nil
}

func checkOptions(ds *model.Dataset, opts DispatchOptions) error {
	switch {
	case opts.Nodes < 1:
		return fmt.Errorf("%w: %d nodes", ErrInvalidSplit, opts.Nodes)
	case opts.EvalFraction < 0 || opts.EvalFraction >= 1:
		return fmt.Errorf("%w: evaluation fraction %g",
			ErrInvalidSplit, opts.EvalFraction)
	case opts.LocalTestFraction < 0 || opts.LocalTestFraction >= 1:
		return fmt.Errorf("%w: local test fraction %g",
			ErrInvalidSplit, opts.LocalTestFraction)
	case len(ds.X) != len(ds.Y):
		return fmt.Errorf("%w: %d rows but %d labels",
			ErrInvalidSplit, len(ds.X), len(ds.Y))
	}

	return nil
}

// Size returns the number of nodes.
func (d *ClassificationDispatcher) Size() int {
	return len(d.Train)
}

// Shard returns the data of node i.
func (d *ClassificationDispatcher) Shard(i int) (train, test *model.Dataset) {
	if d.Test != nil {
		test = d.Test[i]
	}

	return d.Train[i], test
}

// HasTest tells whether nodes hold a local test shard.
func (d *ClassificationDispatcher) HasTest() bool {
	return d.Test != nil
}

// EvalSet returns the global held-out set.
func (d *ClassificationDispatcher) EvalSet() *model.Dataset {
	return d.Eval
}

var _ Dispatcher = (*ClassificationDispatcher)(nil)
