package simulation

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/model"
)

type countingHook struct {
	counts map[*hooking.HookPos]int
	onFire func(ctx hooking.HookCtx, count int)
}

func newCountingHook() *countingHook {
	return &countingHook{counts: make(map[*hooking.HookPos]int)}
}

func (h *countingHook) Func(ctx hooking.HookCtx) {
	h.counts[ctx.Pos]++

	if h.onFire != nil {
		h.onFire(ctx, h.counts[ctx.Pos])
	}
}

func withProtocol(p gossip.Protocol) func(Builder) Builder {
	return func(b Builder) Builder { return b.WithProtocol(p) }
}

var _ = ginkgo.Describe("Simulator", func() {
	ctx := context.Background()

	ginkgo.It("should train every node and report every round", func() {
		s := newTestSimulator(42, withProtocol(gossip.ProtocolPushPull))

		report, err := s.Start(ctx, 5)

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Evaluations).To(HaveLen(5))
		Expect(report.Accuracy()).To(HaveLen(5))
		Expect(report.Interrupted).To(BeFalse())

		for _, n := range s.Nodes() {
			Expect(n.Updates()).To(BeNumerically(">", 0))
		}

		for i, e := range report.Evaluations {
			Expect(e.Round).To(Equal(i))
			Expect(e.Tick).To(Equal((i+1)*testRoundLen - 1))
			Expect(e.HasGlobal).To(BeTrue())
			Expect(e.HasUser).To(BeTrue())
		}

		Expect(s.Tick()).To(Equal(5 * testRoundLen))
	})

	ginkgo.It("should reproduce a run from the same seed", func() {
		a, err := newTestSimulator(7, nil).Start(ctx, 4)
		Expect(err).NotTo(HaveOccurred())

		b, err := newTestSimulator(7, nil).Start(ctx, 4)
		Expect(err).NotTo(HaveOccurred())

		Expect(b).To(Equal(a))
	})

	ginkgo.It("should count one push per node and round", func() {
		s := newTestSimulator(1, nil)

		report, _ := s.Start(ctx, 5)

		Expect(report.Messages).To(Equal(5 * testNodes))
		Expect(report.Bytes).To(Equal(5 * testNodes * 24))
		Expect(report.Dropped).To(BeZero())
	})

	ginkgo.It("should count replies", func() {
		s := newTestSimulator(1, withProtocol(gossip.ProtocolPull))

		report, _ := s.Start(ctx, 5)

		Expect(report.Messages).To(Equal(2 * 5 * testNodes))
		Expect(report.Bytes).To(Equal(5 * testNodes * 24))
	})

	ginkgo.It("should count a reply only once it survives the failure draw", func() {
		s := newTestSimulator(17, func(b Builder) Builder {
			return b.WithProtocol(gossip.ProtocolPushPull).
				WithMessageFailureRate(0.5)
		})

		sent := map[*gossip.Message]bool{}
		dropped, droppedReplies := 0, 0
		s.AcceptHook(hooking.HookFunc(func(hc hooking.HookCtx) {
			switch hc.Pos {
			case HookPosMessageSent:
				sent[hc.Item.(*gossip.Message)] = true
			case HookPosMessageDropped:
				msg := hc.Item.(*gossip.Message)
				dropped++

				if msg.Type == gossip.TypeReply {
					droppedReplies++
					Expect(sent).NotTo(HaveKey(msg))
				} else {
					Expect(sent).To(HaveKey(msg))
				}
			}
		}))

		report, err := s.Start(ctx, 5)

		Expect(err).NotTo(HaveOccurred())
		Expect(droppedReplies).To(BeNumerically(">", 0))
		Expect(report.Messages).To(Equal(len(sent)))
		Expect(report.Dropped).To(Equal(dropped))
	})

	ginkgo.It("should drop every message when the failure rate is one", func() {
		s := newTestSimulator(1, func(b Builder) Builder {
			return b.WithMessageFailureRate(1)
		})

		report, _ := s.Start(ctx, 3)

		Expect(report.Dropped).To(Equal(report.Messages))
		for _, n := range s.Nodes() {
			Expect(n.Updates()).To(BeZero())
		}
	})

	ginkgo.It("should deliver nothing when receivers are never online", func() {
		s := newTestSimulator(1, func(b Builder) Builder {
			return b.WithOnlineProb(0)
		})

		report, _ := s.Start(ctx, 3)

		Expect(report.Offline).To(Equal(report.Messages))
		for _, n := range s.Nodes() {
			Expect(n.Updates()).To(BeZero())
		}
	})

	ginkgo.It("should hold delayed messages until they are due", func() {
		s := newTestSimulator(3, func(b Builder) Builder {
			return b.WithDelay(ConstantDelay{Ticks: 3})
		})

		report, _ := s.Start(ctx, 5)

		updates := 0
		for _, n := range s.Nodes() {
			updates += n.Updates()
		}

		inFlight := 0
		for due, msgs := range s.pending {
			Expect(due).To(BeNumerically(">=", 5*testRoundLen))
			inFlight += len(msgs)
		}

		Expect(updates + inFlight).To(Equal(report.Messages))
	})

	ginkgo.It("should evaluate a sample of the nodes", func() {
		s := newTestSimulator(5, func(b Builder) Builder {
			return b.WithSamplingEval(0.3)
		})

		Expect(s.evaluationSample()).To(HaveLen(3))

		report, err := s.Start(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Evaluations).To(HaveLen(2))
	})

	ginkgo.It("should raise hooks", func() {
		s := newTestSimulator(1, withProtocol(gossip.ProtocolPushPull))
		hook := newCountingHook()
		s.AcceptHook(hook)

		report, _ := s.Start(ctx, 2)

		Expect(hook.counts[HookPosMessageSent]).To(Equal(report.Messages))
		Expect(hook.counts[HookPosMessageDelivered]).To(Equal(report.Messages))
		Expect(hook.counts[HookPosRoundEvaluated]).To(Equal(2))
		Expect(hook.counts[HookPosSimulationEnd]).To(Equal(1))
	})

	ginkgo.It("should keep partial results when cancelled", func() {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		s := newTestSimulator(1, nil)
		hook := newCountingHook()
		hook.onFire = func(hc hooking.HookCtx, count int) {
			if hc.Pos == HookPosRoundEvaluated && count == 2 {
				cancel()
			}
		}
		s.AcceptHook(hook)

		report, err := s.Start(runCtx, 5)

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Interrupted).To(BeTrue())
		Expect(report.Evaluations).To(HaveLen(2))
		Expect(s.Tick()).To(Equal(2 * testRoundLen))
	})

	ginkgo.It("should continue where the previous start stopped", func() {
		s := newTestSimulator(9, nil)

		_, _ = s.Start(ctx, 2)
		report, _ := s.Start(ctx, 3)

		Expect(report.Evaluations).To(HaveLen(5))
		Expect(report.Evaluations[4].Tick).To(Equal(5*testRoundLen - 1))
	})

	ginkgo.It("should resume identically from a checkpoint", func() {
		a := newTestSimulator(11, withProtocol(gossip.ProtocolPushPull))
		_, err := a.Start(ctx, 2)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(a.Save(&buf)).To(Succeed())

		expected, err := a.Start(ctx, 2)
		Expect(err).NotTo(HaveOccurred())

		b, err := Load(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.ID()).To(Equal("test"))
		Expect(b.Tick()).To(Equal(2 * testRoundLen))

		actual, err := b.Start(ctx, 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(actual).To(Equal(expected))
	})

	ginkgo.It("should restart from scratch on InitNodes", func() {
		s := newTestSimulator(13, nil)
		_, _ = s.Start(ctx, 2)

		s.InitNodes()

		Expect(s.Tick()).To(BeZero())
		Expect(s.Report().Evaluations).To(BeEmpty())
		for _, n := range s.Nodes() {
			Expect(n.Updates()).To(BeZero())
		}
	})

	ginkgo.It("should do nothing on pause when not running", func() {
		s := newTestSimulator(1, nil)

		s.Pause()
		Expect(s.IsPaused()).To(BeFalse())
		s.Continue()

		called := false
		s.Inspect(func(nodes []gossip.Node) {
			called = true
			Expect(nodes).To(HaveLen(testNodes))
		})
		Expect(called).To(BeTrue())
	})
})

var _ = ginkgo.Describe("Simulator with a mocked network", func() {
	var (
		mockCtrl *gomock.Controller
		network  *MockNetwork
		nodes    []gossip.Node
		rng      *rand.Rand
	)

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())
		network = NewMockNetwork(mockCtrl)
		network.EXPECT().Size().Return(3).AnyTimes()

		rng = rand.New(rand.NewPCG(1, 1))
		nodes = make([]gossip.Node, 3)
		for i := range nodes {
			h := model.NewSGDHandler(2, 0.1, 0, model.ModeMergeUpdate)
			nodes[i] = gossip.NewGossipNode(i, 3, testRoundLen, true,
				gossip.Shard{}, h, rng)
		}
	})

	ginkgo.AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func() *Simulator {
		s, err := MakeBuilder().
			WithNodes(nodes).
			WithNetwork(network).
			WithRoundLen(testRoundLen).
			WithRandomSource(rand.NewPCG(2, 2)).
			Build()
		Expect(err).NotTo(HaveOccurred())
		s.InitNodes()

		return s
	}

	ginkgo.It("should hand new peers to the nodes when the network changes", func() {
		network.EXPECT().Refresh(5, gomock.Any()).Return(true, nil)
		network.EXPECT().Refresh(gomock.Any(), gomock.Any()).
			Return(false, nil).AnyTimes()
		network.EXPECT().Peers(0).Return([]int{1})
		network.EXPECT().Peers(1).Return([]int{0, 2})
		network.EXPECT().Peers(2).Return([]int{1})

		s := build()
		_, err := s.Start(context.Background(), 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(nodes[2].(*gossip.GossipNode).KnownNodes).To(Equal([]int{1}))
		Expect(nodes[1].(*gossip.GossipNode).KnownNodes).To(Equal([]int{0, 2}))
	})

	stopAt := func(tick int, cancel context.CancelFunc) {
		network.EXPECT().Refresh(gomock.Any(), gomock.Any()).
			DoAndReturn(func(t int, _ *rand.Rand) (bool, error) {
				if t == tick {
					cancel()
				}

				return false, nil
			}).AnyTimes()
	}

	ginkgo.It("should resume after a cancel in the last tick of a round", func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stopAt(testRoundLen-1, cancel)

		s := build()
		sends := map[[2]int]int{}
		s.AcceptHook(hooking.HookFunc(func(hc hooking.HookCtx) {
			if hc.Pos != HookPosMessageSent {
				return
			}

			msg := hc.Item.(*gossip.Message)
			sends[[2]int{msg.Sender, hc.Detail.(int) / testRoundLen}]++
		}))

		report, err := s.Start(runCtx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Interrupted).To(BeTrue())
		Expect(report.Evaluations).To(HaveLen(1))
		Expect(s.Tick()).To(Equal(testRoundLen))

		report, err = s.Start(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Interrupted).To(BeFalse())
		Expect(report.Evaluations).To(HaveLen(2))
		Expect(s.Tick()).To(Equal(2 * testRoundLen))

		Expect(sends).To(HaveLen(2 * len(nodes)))
		for key, n := range sends {
			Expect(n).To(Equal(1), "node %d in round %d", key[0], key[1])
		}
		Expect(report.Messages).To(Equal(2 * len(nodes)))
	})

	ginkgo.It("should finish an interrupted round before starting new ones", func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stopAt(4, cancel)

		s := build()
		report, err := s.Start(runCtx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Interrupted).To(BeTrue())
		Expect(report.Evaluations).To(BeEmpty())
		Expect(s.Tick()).To(Equal(5))

		report, err = s.Start(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.EndTick()).To(Equal(testRoundLen))
		Expect(s.Tick()).To(Equal(testRoundLen))
		Expect(report.Evaluations).To(HaveLen(1))
		Expect(report.Evaluations[0].Tick).To(Equal(testRoundLen - 1))
	})

	ginkgo.It("should stop on network errors", func() {
		errBroken := errors.New("broken")
		network.EXPECT().Refresh(gomock.Any(), gomock.Any()).
			Return(false, errBroken)

		s := build()
		_, err := s.Start(context.Background(), 1)

		Expect(err).To(MatchError(errBroken))
	})

	ginkgo.It("should report no evaluation data as missing", func() {
		network.EXPECT().Refresh(gomock.Any(), gomock.Any()).
			Return(false, nil).AnyTimes()

		s := build()
		report, err := s.Start(context.Background(), 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Evaluations).To(HaveLen(1))
		Expect(report.Evaluations[0].HasGlobal).To(BeFalse())
		Expect(report.Evaluations[0].HasUser).To(BeFalse())
		Expect(report.Accuracy()).To(Equal([]float64{0}))
	})
})

var _ = ginkgo.Describe("Builder", func() {
	ginkgo.DescribeTable("invalid parameters",
		func(configure func(Builder) Builder) {
			s := newTestSimulator(1, nil)
			b := MakeBuilder().
				WithNodes(s.Nodes()).
				WithNetwork(s.Network())

			_, err := configure(b).Build()

			Expect(err).To(MatchError(ErrInvalidParameter))
		},
		ginkgo.Entry("failure rate", func(b Builder) Builder {
			return b.WithMessageFailureRate(1.5)
		}),
		ginkgo.Entry("online probability", func(b Builder) Builder {
			return b.WithOnlineProb(-0.1)
		}),
		ginkgo.Entry("sampling", func(b Builder) Builder {
			return b.WithSamplingEval(2)
		}),
		ginkgo.Entry("round length", func(b Builder) Builder {
			return b.WithRoundLen(0)
		}),
		ginkgo.Entry("no nodes", func(b Builder) Builder {
			return b.WithNodes(nil)
		}),
		ginkgo.Entry("no delay", func(b Builder) Builder {
			return b.WithDelay(nil)
		}),
	)

	ginkgo.It("should generate a run ID", func() {
		s := newTestSimulator(1, func(b Builder) Builder {
			return b.WithID("")
		})

		Expect(s.ID()).NotTo(BeEmpty())
	})
})

var _ = ginkgo.Describe("Delays", func() {
	msg := &gossip.Message{
		Type:  gossip.TypePush,
		Value: &gossip.Payload{Handler: model.NewSGDHandler(2, 0, 0, 0)},
	}

	ginkgo.It("should draw uniform delays within bounds", func() {
		rng := rand.New(rand.NewPCG(1, 2))
		d := UniformDelay{Min: 2, Max: 4}

		seen := map[int]bool{}
		for i := 0; i < 200; i++ {
			v := d.Draw(msg, rng)
			Expect(v).To(BeNumerically(">=", 2))
			Expect(v).To(BeNumerically("<=", 4))
			seen[v] = true
		}

		Expect(seen).To(HaveLen(3))
		Expect(UniformDelay{Min: 3, Max: 3}.Draw(msg, rng)).To(Equal(3))
	})

	ginkgo.It("should grow with message size", func() {
		Expect(LinearDelay{Base: 1, BytesPerTick: 8}.Draw(msg, nil)).To(Equal(4))
		Expect(LinearDelay{Base: 1}.Draw(msg, nil)).To(Equal(1))
		Expect(ConstantDelay{Ticks: 2}.Draw(msg, nil)).To(Equal(2))
	})
})
