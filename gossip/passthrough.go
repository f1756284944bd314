package gossip

import (
	"math/rand/v2"

	"github.com/sarchlab/gossiplearn/model"
)

// PassThroughNode attaches its degree to every model it sends. A receiver
// merges an incoming model with probability min(1, senderDegree/ownDegree)
// and otherwise takes it over unchanged, which lets models of poorly
// connected nodes travel further.
type PassThroughNode struct {
	*GossipNode
}

// NewPassThroughNode wraps core.
func NewPassThroughNode(core *GossipNode) *PassThroughNode {
	return &PassThroughNode{GossipNode: core}
}

// Send opens an exchange, attaching the node's degree to the model.
func (n *PassThroughNode) Send(
	t, peer int,
	protocol Protocol,
) (*Message, error) {
	return n.send(t, peer, protocol, n.payload)
}

// Receive handles msg, drawing from rng whether to merge or pass through.
func (n *PassThroughNode) Receive(
	t int,
	msg *Message,
	rng *rand.Rand,
) (*Message, error) {
	absorb := func(p *Payload) error {
		return n.absorb(p, rng)
	}

	return n.receive(t, msg, absorb, n.payload)
}

func (n *PassThroughNode) payload() *Payload {
	p := n.snapshot()
	p.Degree = n.Degree()
	p.HasDegree = true

	return p
}

func (n *PassThroughNode) absorb(p *Payload, rng *rand.Rand) error {
	if p == nil || !p.HasDegree {
		return n.GossipNode.absorb(p)
	}

	if rng.Float64() < n.mergeProbability(p.Degree) {
		return n.compose(n.Handler, p, 1)
	}

	return n.compose(model.WithMode(n.Handler, model.ModePass), p, 1)
}

func (n *PassThroughNode) mergeProbability(senderDegree int) float64 {
	own := n.Degree()
	if own < 1 {
		return 1
	}

	return min(1, float64(senderDegree)/float64(own))
}

var _ Node = (*PassThroughNode)(nil)
