package gossip

import "math/rand/v2"

// FederatedNode runs several local training epochs every time it folds in a
// received model.
type FederatedNode struct {
	*GossipNode

	LocalEpochs int
}

// NewFederatedNode wraps core.
func NewFederatedNode(core *GossipNode, localEpochs int) *FederatedNode {
	return &FederatedNode{GossipNode: core, LocalEpochs: localEpochs}
}

// Receive handles msg, training LocalEpochs times per compose.
func (n *FederatedNode) Receive(
	t int,
	msg *Message,
	_ *rand.Rand,
) (*Message, error) {
	absorb := func(p *Payload) error {
		return n.compose(n.Handler, p, n.LocalEpochs)
	}

	return n.receive(t, msg, absorb, n.snapshot)
}

var _ Node = (*FederatedNode)(nil)
