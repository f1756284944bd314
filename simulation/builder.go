package simulation

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/xid"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/idgen"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/topology"
)

// ErrInvalidParameter is returned by Build for out-of-range settings.
var ErrInvalidParameter = errors.New("simulation: invalid parameter")

// Builder can be used to build a simulator.
type Builder struct {
	id           string
	nodes        []gossip.Node
	network      topology.Network
	evalSet      *model.Dataset
	protocol     gossip.Protocol
	roundLen     int
	delay        Delay
	failureRate  float64
	onlineProb   float64
	samplingEval float64
	source       *rand.PCG
}

// MakeBuilder creates a new builder with lossless, always-online defaults.
func MakeBuilder() Builder {
	return Builder{
		protocol:   gossip.ProtocolPush,
		roundLen:   100,
		delay:      ConstantDelay{},
		onlineProb: 1,
	}
}

// WithID sets the run identifier. A random one is used otherwise.
func (b Builder) WithID(id string) Builder {
	b.id = id
	return b
}

// WithNodes sets the node population.
func (b Builder) WithNodes(nodes []gossip.Node) Builder {
	b.nodes = nodes
	return b
}

// WithNetwork sets the network the nodes talk over.
func (b Builder) WithNetwork(network topology.Network) Builder {
	b.network = network
	return b
}

// WithEvalSet sets the global held-out set evaluated at every round end.
func (b Builder) WithEvalSet(ds *model.Dataset) Builder {
	b.evalSet = ds
	return b
}

// WithProtocol sets the protocol nodes use to open exchanges.
func (b Builder) WithProtocol(p gossip.Protocol) Builder {
	b.protocol = p
	return b
}

// WithRoundLen sets the number of ticks per round.
func (b Builder) WithRoundLen(ticks int) Builder {
	b.roundLen = ticks
	return b
}

// WithDelay sets the in-flight delay of messages.
func (b Builder) WithDelay(d Delay) Builder {
	b.delay = d
	return b
}

// WithMessageFailureRate sets the probability that a message is lost.
func (b Builder) WithMessageFailureRate(rate float64) Builder {
	b.failureRate = rate
	return b
}

// WithOnlineProb sets the probability that a receiver is online.
func (b Builder) WithOnlineProb(p float64) Builder {
	b.onlineProb = p
	return b
}

// WithSamplingEval evaluates only a random fraction of the nodes at every
// round end. Zero evaluates all nodes.
func (b Builder) WithSamplingEval(fraction float64) Builder {
	b.samplingEval = fraction
	return b
}

// WithRandomSource sets the source of every random draw of the simulation.
// Passing the source the nodes were built with keeps the whole run on a
// single stream.
func (b Builder) WithRandomSource(src *rand.PCG) Builder {
	b.source = src
	return b
}

func (b Builder) check() error {
	switch {
	case len(b.nodes) == 0:
		return fmt.Errorf("%w: no nodes", ErrInvalidParameter)
	case b.network == nil:
		return fmt.Errorf("%w: no network", ErrInvalidParameter)
	case b.network.Size() != len(b.nodes):
		return fmt.Errorf("%w: network of %d for %d nodes",
			ErrInvalidParameter, b.network.Size(), len(b.nodes))
	case b.roundLen < 1:
		return fmt.Errorf("%w: round length %d", ErrInvalidParameter, b.roundLen)
	case b.failureRate < 0 || b.failureRate > 1:
		return fmt.Errorf("%w: message failure rate %g outside [0, 1]",
			ErrInvalidParameter, b.failureRate)
	case b.onlineProb < 0 || b.onlineProb > 1:
		return fmt.Errorf("%w: online probability %g outside [0, 1]",
			ErrInvalidParameter, b.onlineProb)
	case b.samplingEval < 0 || b.samplingEval > 1:
		return fmt.Errorf("%w: evaluation sampling %g outside [0, 1]",
			ErrInvalidParameter, b.samplingEval)
	case b.delay == nil:
		return fmt.Errorf("%w: no delay model", ErrInvalidParameter)
	}

	return nil
}

// Build builds the simulator. Nodes are not initialized; call InitNodes
// before the first Start.
func (b Builder) Build() (*Simulator, error) {
	if err := b.check(); err != nil {
		return nil, err
	}

	src := b.source
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	id := b.id
	if id == "" {
		id = xid.New().String()
	}

	s := &Simulator{
		HookableBase: hooking.NewHookableBase(),
		id:           id,
		nodes:        b.nodes,
		network:      b.network,
		evalSet:      b.evalSet,
		protocol:     b.protocol,
		delta:        b.roundLen,
		delay:        b.delay,
		failureRate:  b.failureRate,
		onlineProb:   b.onlineProb,
		samplingEval: b.samplingEval,
		pcg:          src,
		rng:          rand.New(src),
		ids:          idgen.New(),
		order:        make([]int, len(b.nodes)),
		pending:      make(map[int][]*gossip.Message),
		report:       &Report{},
	}

	for i := range s.order {
		s.order[i] = i
	}

	return s, nil
}
