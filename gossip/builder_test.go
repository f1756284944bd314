package gossip

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gossiplearn/data"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/topology"
)

var _ = Describe("Builder", func() {
	var (
		dispatcher *data.ClassificationDispatcher
		network    *topology.StaticNetwork
		prototype  *model.SGDHandler
	)

	BeforeEach(func() {
		ds := data.Separable(60, 2, 0.2, data.ZeroOne, newRNG(1))

		var err error
		dispatcher, err = data.NewClassificationDispatcher(ds,
			data.DispatchOptions{Nodes: 6}, newRNG(2))
		Expect(err).NotTo(HaveOccurred())

		ring, err := topology.Ring(6, 1)
		Expect(err).NotTo(HaveOccurred())
		network, err = topology.NewStaticNetwork(6, ring)
		Expect(err).NotTo(HaveOccurred())

		prototype = model.NewSGDHandler(2, 0.1, 0, model.ModeMergeUpdate)
	})

	It("should build one node per shard", func() {
		nodes, err := MakeBuilder().
			WithRoundLen(20).
			WithModel(prototype).
			Build(dispatcher, network, newRNG(3))

		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(6))

		for i, n := range nodes {
			core := n.(*GossipNode)
			train, _ := dispatcher.Shard(i)

			Expect(core.ID()).To(Equal(i))
			Expect(core.RoundLen).To(Equal(20))
			Expect(core.Delay).To(BeNumerically("<", 20))
			Expect(core.Data.Train).To(BeIdenticalTo(train))
			Expect(core.KnownNodes).To(Equal(network.Peers(i)))
			Expect(core.Handler).NotTo(BeIdenticalTo(prototype))
		}

		Expect(nodes[0].Model()).NotTo(BeIdenticalTo(nodes[1].Model()))
	})

	It("should leave an isolated node without peers", func() {
		adj := topology.NewAdjacency(6)
		adj.Connect(1, 2)
		sparse, err := topology.NewStaticNetwork(6, adj)
		Expect(err).NotTo(HaveOccurred())

		nodes, err := MakeBuilder().
			WithModel(prototype).
			Build(dispatcher, sparse, newRNG(3))
		Expect(err).NotTo(HaveOccurred())

		isolated := nodes[0].(*GossipNode)
		Expect(isolated.Restricted).To(BeTrue())
		Expect(isolated.Degree()).To(BeZero())

		_, err = isolated.Peer(newRNG(4))
		Expect(err).To(MatchError(ErrNoPeer))

		p, err := nodes[1].(*GossipNode).Peer(newRNG(4))
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(2))
	})

	It("should draw the same delays from the same seed", func() {
		a, _ := MakeBuilder().WithModel(prototype).
			Build(dispatcher, network, newRNG(3))
		b, _ := MakeBuilder().WithModel(prototype).
			Build(dispatcher, network, newRNG(3))

		for i := range a {
			Expect(a[i].(*GossipNode).Delay).
				To(Equal(b[i].(*GossipNode).Delay))
		}
	})

	DescribeTable("node kinds",
		func(kind Kind, check func(Node)) {
			nodes, err := MakeBuilder().
				WithKind(kind).
				WithLocalEpochs(4).
				WithModel(prototype).
				Build(dispatcher, network, newRNG(3))

			Expect(err).NotTo(HaveOccurred())
			check(nodes[0])
		},
		Entry("pass-through", KindPassThrough, func(n Node) {
			Expect(n).To(BeAssignableToTypeOf(&PassThroughNode{}))
		}),
		Entry("cache", KindCache, func(n Node) {
			Expect(n.(*CacheNode).Cache).To(BeEmpty())
		}),
		Entry("federated", KindFederated, func(n Node) {
			Expect(n.(*FederatedNode).LocalEpochs).To(Equal(4))
		}),
	)

	It("should reject an unknown kind", func() {
		_, err := MakeBuilder().WithKind(Kind(9)).WithModel(prototype).
			Build(dispatcher, network, newRNG(3))

		Expect(err).To(MatchError(ErrUnknownKind))
	})

	It("should require a model", func() {
		_, err := MakeBuilder().Build(dispatcher, network, newRNG(3))

		Expect(err).To(HaveOccurred())
	})

	It("should reject a network of a different size", func() {
		other, _ := topology.NewStaticNetwork(5, nil)

		_, err := MakeBuilder().WithModel(prototype).
			Build(dispatcher, other, newRNG(3))

		Expect(err).To(MatchError(topology.ErrInvalidTopology))
	})

	It("should parse kinds", func() {
		k, err := ParseKind(" Cache ")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal(KindCache))
		Expect(k.String()).To(Equal("cache"))

		_, err = ParseKind("mesh")
		Expect(err).To(MatchError(ErrUnknownKind))
	})
})

var _ = Describe("Message", func() {
	It("should cost nothing without a payload", func() {
		var p *Payload
		Expect(p.Size()).To(BeZero())
		Expect((&Message{Type: TypePull}).Size()).To(BeZero())
	})

	It("should print itself", func() {
		msg := &Message{ID: 7, Type: TypePull, Sender: 1, Receiver: 2,
			Timestamp: 3}
		Expect(msg.String()).To(Equal("PULL[7] 1->2 @3 (0B)"))
	})

	It("should parse protocols", func() {
		p, err := ParseProtocol("PUSH_PULL")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(ProtocolPushPull))

		_, err = ParseProtocol("gossip")
		Expect(err).To(MatchError(ErrUnknownProtocol))
	})
})
