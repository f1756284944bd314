package gossip

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/sarchlab/gossiplearn/data"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/topology"
)

// ErrUnknownKind is returned for a node kind the builder cannot make.
var ErrUnknownKind = errors.New("gossip: unknown node kind")

// Kind selects the node variant.
type Kind int

// Node kinds.
const (
	KindPlain Kind = iota
	KindPassThrough
	KindCache
	KindFederated
)

var kindNames = map[Kind]string{
	KindPlain:       "plain",
	KindPassThrough: "passthrough",
	KindCache:       "cache",
	KindFederated:   "federated",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a name such as "cache" into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Builder creates the node population of a simulation.
type Builder struct {
	kind        Kind
	roundLen    int
	sync        bool
	prototype   model.Handler
	localEpochs int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		kind:        KindPlain,
		roundLen:    100,
		sync:        true,
		localEpochs: 1,
	}
}

// WithKind sets the node variant.
func (b Builder) WithKind(kind Kind) Builder {
	b.kind = kind
	return b
}

// WithRoundLen sets the number of ticks between two sends of a node.
func (b Builder) WithRoundLen(roundLen int) Builder {
	b.roundLen = roundLen
	return b
}

// WithSync sets whether the nodes act at a fixed offset of every round.
func (b Builder) WithSync(sync bool) Builder {
	b.sync = sync
	return b
}

// WithModel sets the handler that every node receives a clone of.
func (b Builder) WithModel(prototype model.Handler) Builder {
	b.prototype = prototype
	return b
}

// WithLocalEpochs sets the training epochs per compose of federated nodes.
func (b Builder) WithLocalEpochs(epochs int) Builder {
	b.localEpochs = epochs
	return b
}

// Build creates one node per shard of dispatcher. Each node's known peers
// come from network, and its delay is drawn from rng in index order.
func (b Builder) Build(
	dispatcher data.Dispatcher,
	network topology.Network,
	rng *rand.Rand,
) ([]Node, error) {
	if err := b.check(dispatcher, network); err != nil {
		return nil, err
	}

	n := dispatcher.Size()
	nodes := make([]Node, n)

	for i := 0; i < n; i++ {
		train, test := dispatcher.Shard(i)
		core := NewGossipNode(i, n, b.roundLen, b.sync,
			Shard{Train: train, Test: test},
			b.prototype.Clone(), rng)

		node, err := b.wrap(core)
		if err != nil {
			return nil, err
		}

		node.SetKnownNodes(network.Peers(i))
		nodes[i] = node
	}

	return nodes, nil
}

func (b Builder) check(
	dispatcher data.Dispatcher,
	network topology.Network,
) error {
	switch {
	case b.prototype == nil:
		return errors.New("gossip: no model given to the node builder")
	case b.roundLen < 1:
		return fmt.Errorf("gossip: round length %d", b.roundLen)
	case dispatcher.Size() != network.Size():
		return fmt.Errorf("%w: %d shards for %d network nodes",
			topology.ErrInvalidTopology, dispatcher.Size(), network.Size())
	}

	return nil
}

func (b Builder) wrap(core *GossipNode) (Node, error) {
	switch b.kind {
	case KindPlain:
		return core, nil
	case KindPassThrough:
		return NewPassThroughNode(core), nil
	case KindCache:
		return NewCacheNode(core), nil
	case KindFederated:
		return NewFederatedNode(core, b.localEpochs), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, b.kind)
	}
}
