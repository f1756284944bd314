package gossip

import (
	"math/rand/v2"
	"slices"

	"github.com/sarchlab/gossiplearn/model"
)

// CacheEntry is the latest model received from one peer.
type CacheEntry struct {
	Handler model.Handler

	// Fresh is set when the entry arrives and cleared once it has been
	// merged into the local model.
	Fresh bool
}

// CacheNode keeps the most recent model of every peer instead of merging on
// receipt. When it next contacts a peer, it first folds that peer's cached
// model into its own, then sends.
type CacheNode struct {
	*GossipNode

	Cache map[int]*CacheEntry
}

// NewCacheNode wraps core with an empty cache.
func NewCacheNode(core *GossipNode) *CacheNode {
	return &CacheNode{
		GossipNode: core,
		Cache:      make(map[int]*CacheEntry),
	}
}

// Send merges the fresh cached model of peer, if any, and opens an exchange.
func (n *CacheNode) Send(t, peer int, protocol Protocol) (*Message, error) {
	if _, err := protocol.messageType(); err != nil {
		return nil, err
	}

	if entry, ok := n.Cache[peer]; ok && entry.Fresh {
		p := &Payload{Handler: entry.Handler.Clone()}
		if err := n.compose(n.Handler, p, 1); err != nil {
			return nil, err
		}

		entry.Fresh = false
	}

	return n.send(t, peer, protocol, n.snapshot)
}

// Receive stores incoming models in the cache and answers PULL and
// PUSH_PULL requests.
func (n *CacheNode) Receive(
	t int,
	msg *Message,
	_ *rand.Rand,
) (*Message, error) {
	store := func(p *Payload) error {
		return n.store(msg.Sender, p)
	}

	return n.receive(t, msg, store, n.snapshot)
}

func (n *CacheNode) store(sender int, p *Payload) error {
	if p == nil || p.Handler == nil {
		return ErrEmptyPayload
	}

	if n.Cache == nil {
		n.Cache = make(map[int]*CacheEntry)
	}

	n.Cache[sender] = &CacheEntry{
		Handler: p.Handler.Clone(),
		Fresh:   true,
	}

	return nil
}

// SetKnownNodes updates the allowed peers and evicts the cache entries of
// peers that are no longer allowed.
func (n *CacheNode) SetKnownNodes(peers []int) {
	n.GossipNode.SetKnownNodes(peers)

	if !n.Restricted {
		return
	}

	for peer := range n.Cache {
		if _, found := slices.BinarySearch(n.KnownNodes, peer); !found {
			delete(n.Cache, peer)
		}
	}
}

// InitModel reinitializes the model and empties the cache.
func (n *CacheNode) InitModel(rng *rand.Rand) {
	n.GossipNode.InitModel(rng)
	clear(n.Cache)
}

var _ Node = (*CacheNode)(nil)
