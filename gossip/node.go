package gossip

import (
	"encoding/gob"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sarchlab/gossiplearn/model"
)

// Node is a participant of the gossip protocol.
type Node interface {
	// ID returns the node index.
	ID() int

	// TimedOut tells whether the node must initiate an exchange at tick t.
	TimedOut(t int) bool

	// Peer draws the peer to contact.
	Peer(rng *rand.Rand) (int, error)

	// Send builds the message that opens an exchange with peer.
	Send(t, peer int, protocol Protocol) (*Message, error)

	// Receive handles msg and returns the answer, if the message type
	// requires one.
	Receive(t int, msg *Message, rng *rand.Rand) (*Message, error)

	// Evaluate scores the local model on data, or on the node's own test
	// shard when data is nil.
	Evaluate(data *model.Dataset) model.Metrics

	// HasTest tells whether the node has a non-empty test shard.
	HasTest() bool

	// InitModel reinitializes the model and resets the node's counters.
	InitModel(rng *rand.Rand)

	// SetKnownNodes restricts the peers the node may contact. A nil slice
	// lifts the restriction.
	SetKnownNodes(peers []int)

	// Updates returns the number of merge or update operations the node has
	// applied to its model.
	Updates() int

	// Model returns the node's handler.
	Model() model.Handler
}

// Shard is a node's private data.
type Shard struct {
	Train *model.Dataset
	Test  *model.Dataset
}

// GossipNode is the plain gossip node. The variants embed it.
type GossipNode struct {
	Idx      int
	NNodes   int
	RoundLen int
	Delay    int
	Sync     bool
	NextTick int

	// KnownNodes lists the allowed peers when Restricted is set.
	KnownNodes []int
	Restricted bool

	Data     Shard
	Handler  model.Handler
	NUpdates int
}

// NewGossipNode creates a node. The delay within the round is drawn from
// rng.
func NewGossipNode(
	idx, nNodes, roundLen int,
	sync bool,
	data Shard,
	handler model.Handler,
	rng *rand.Rand,
) *GossipNode {
	n := &GossipNode{
		Idx:      idx,
		NNodes:   nNodes,
		RoundLen: roundLen,
		Delay:    rng.IntN(roundLen),
		Sync:     sync,
		Data:     data,
		Handler:  handler,
	}
	n.NextTick = n.Delay

	return n
}

// ID returns the node index.
func (n *GossipNode) ID() int {
	return n.Idx
}

// TimedOut tells whether the node acts at tick t. Synchronous nodes act at
// the same offset of every round. Asynchronous nodes act when their own
// schedule says so.
func (n *GossipNode) TimedOut(t int) bool {
	if n.Sync {
		return t%n.RoundLen == n.Delay
	}

	return t == n.NextTick
}

// SetKnownNodes restricts peer selection to peers, minus the node itself and
// duplicates.
func (n *GossipNode) SetKnownNodes(peers []int) {
	if peers == nil {
		n.KnownNodes = nil
		n.Restricted = false

		return
	}

	known := slices.Clone(peers)
	slices.Sort(known)
	known = slices.Compact(known)
	known = slices.DeleteFunc(known, func(p int) bool { return p == n.Idx })

	n.KnownNodes = known
	n.Restricted = true
}

// Degree returns the number of peers the node may contact.
func (n *GossipNode) Degree() int {
	if n.Restricted {
		return len(n.KnownNodes)
	}

	return n.NNodes - 1
}

// Peer draws a peer uniformly among the allowed ones.
func (n *GossipNode) Peer(rng *rand.Rand) (int, error) {
	if n.Degree() < 1 {
		return 0, ErrNoPeer
	}

	if n.Restricted {
		return n.KnownNodes[rng.IntN(len(n.KnownNodes))], nil
	}

	p := rng.IntN(n.NNodes - 1)
	if p >= n.Idx {
		p++
	}

	return p, nil
}

// Send opens an exchange with peer.
func (n *GossipNode) Send(t, peer int, protocol Protocol) (*Message, error) {
	return n.send(t, peer, protocol, n.snapshot)
}

// send builds the opening message. PULL requests carry no model; the others
// carry what payload returns.
func (n *GossipNode) send(
	t, peer int,
	protocol Protocol,
	payload func() *Payload,
) (*Message, error) {
	msgType, err := protocol.messageType()
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Timestamp: t,
		Type:      msgType,
		Sender:    n.Idx,
		Receiver:  peer,
	}

	if msgType != TypePull {
		msg.Value = payload()
	}

	if !n.Sync {
		n.NextTick = t + n.RoundLen
	}

	return msg, nil
}

func (n *GossipNode) snapshot() *Payload {
	return &Payload{Handler: n.Handler.Clone()}
}

// Receive handles msg with the plain merge rule.
func (n *GossipNode) Receive(
	t int,
	msg *Message,
	_ *rand.Rand,
) (*Message, error) {
	return n.receive(t, msg, n.absorb, n.snapshot)
}

// receive runs the message-type state machine. absorb folds an incoming
// model into the node; payload builds the answer.
func (n *GossipNode) receive(
	t int,
	msg *Message,
	absorb func(*Payload) error,
	payload func() *Payload,
) (*Message, error) {
	switch msg.Type {
	case TypePush, TypeReply:
		return nil, absorb(msg.Value)
	case TypePull:
		return n.reply(t, msg, payload), nil
	case TypePushPull:
		if err := absorb(msg.Value); err != nil {
			return nil, err
		}

		return n.reply(t, msg, payload), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessageType, msg.Type)
	}
}

func (n *GossipNode) reply(
	t int,
	msg *Message,
	payload func() *Payload,
) *Message {
	return &Message{
		Timestamp: t,
		Type:      TypeReply,
		Sender:    n.Idx,
		Receiver:  msg.Sender,
		Value:     payload(),
	}
}

func (n *GossipNode) absorb(p *Payload) error {
	return n.compose(n.Handler, p, 1)
}

// compose folds the payload model into local using local's create mode and
// counts the operation.
func (n *GossipNode) compose(
	local model.Handler,
	p *Payload,
	epochs int,
) error {
	if p == nil || p.Handler == nil {
		return ErrEmptyPayload
	}

	if err := model.Compose(local, p.Handler, n.Data.Train, epochs); err != nil {
		return err
	}

	n.NUpdates++

	return nil
}

// Evaluate scores the model on data, or on the node's test shard when data
// is nil. Without data the result is all zeros.
func (n *GossipNode) Evaluate(data *model.Dataset) model.Metrics {
	if data == nil {
		data = n.Data.Test
	}

	if data.Len() == 0 {
		return model.Metrics{}
	}

	return n.Handler.Evaluate(data)
}

// HasTest tells whether the node holds test data.
func (n *GossipNode) HasTest() bool {
	return n.Data.Test.Len() > 0
}

// InitModel reinitializes the handler and restarts the node's schedule.
func (n *GossipNode) InitModel(rng *rand.Rand) {
	n.Handler.Init(rng)
	n.NUpdates = 0
	n.NextTick = n.Delay
}

// Updates returns the number of merge or update operations applied.
func (n *GossipNode) Updates() int {
	return n.NUpdates
}

// Model returns the node's handler.
func (n *GossipNode) Model() model.Handler {
	return n.Handler
}

func init() {
	gob.Register(&GossipNode{})
	gob.Register(&PassThroughNode{})
	gob.Register(&CacheNode{})
	gob.Register(&FederatedNode{})
}

var _ Node = (*GossipNode)(nil)
