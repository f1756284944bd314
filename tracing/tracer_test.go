package tracing_test

import (
	"bytes"
	"context"
	"encoding/csv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/tracing"
)

var _ = Describe("MessageTracer", func() {
	It("should agree with the report", func() {
		s := newSimulator(3, gossip.ProtocolPushPull, 0.2)
		t := tracing.NewMessageTracer()
		tracing.CollectTrace(s, t)

		report, err := s.Start(context.Background(), 4)
		Expect(err).NotTo(HaveOccurred())

		Expect(t.Total(tracing.OutcomeSent)).To(BeEquivalentTo(report.Messages))
		Expect(t.Bytes(tracing.OutcomeSent)).To(BeEquivalentTo(report.Bytes))
		Expect(t.Total(tracing.OutcomeDropped)).To(BeEquivalentTo(report.Dropped))
		Expect(t.Total(tracing.OutcomeOffline)).To(BeZero())
		Expect(t.Rounds()).To(Equal(4))

		Expect(t.Count(tracing.OutcomeSent, gossip.TypePushPull)).
			To(BeNumerically(">", 0))
		Expect(t.Count(tracing.OutcomeSent, gossip.TypePull)).To(BeZero())
		droppedReplies := int(t.Count(tracing.OutcomeDropped, gossip.TypeReply))
		Expect(t.Total(tracing.OutcomeDelivered)).
			To(BeEquivalentTo(report.Messages - report.Dropped + droppedReplies))
	})

	It("should refuse the same tracer twice", func() {
		s := newSimulator(1, gossip.ProtocolPush, 0)
		t := tracing.NewMessageTracer()
		tracing.CollectTrace(s, t)

		Expect(func() { tracing.CollectTrace(s, t) }).To(Panic())
	})

	It("should accept different tracers", func() {
		s := newSimulator(1, gossip.ProtocolPush, 0)
		tracing.CollectTrace(s, tracing.NewMessageTracer())

		Expect(func() {
			tracing.CollectTrace(s, tracing.NewMessageTracer())
		}).NotTo(Panic())
	})
})

var _ = Describe("LogTracer", func() {
	It("should log rounds at info and messages at debug", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		s := newSimulator(5, gossip.ProtocolPush, 0)
		tracing.CollectTrace(s, tracing.NewLogTracer(zap.New(core)))

		report, err := s.Start(context.Background(), 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(logs.FilterMessage("round evaluated").Len()).To(Equal(2))
		Expect(logs.FilterMessage("simulation ended").Len()).To(Equal(1))

		// Every sent message is also delivered.
		Expect(logs.FilterMessage("message").Len()).
			To(Equal(2 * report.Messages))

		round := logs.FilterMessage("round evaluated").All()[0]
		Expect(round.Level).To(Equal(zapcore.InfoLevel))
		Expect(round.ContextMap()).To(HaveKey("global"))
		Expect(round.ContextMap()).To(HaveKey("user"))
	})

	It("should skip messages above debug level", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		s := newSimulator(5, gossip.ProtocolPush, 0)
		tracing.CollectTrace(s, tracing.NewLogTracer(zap.New(core)))

		_, err := s.Start(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(logs.FilterMessage("message").Len()).To(BeZero())
		Expect(logs.Len()).To(Equal(2))
	})
})

var _ = Describe("CSVTracer", func() {
	It("should write one line per round and scope", func() {
		var buf bytes.Buffer

		t, err := tracing.NewCSVTracer(&buf, "r1")
		Expect(err).NotTo(HaveOccurred())

		s := newSimulator(9, gossip.ProtocolPush, 0)
		tracing.CollectTrace(s, t)

		_, err = s.Start(context.Background(), 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Err()).NotTo(HaveOccurred())

		records, err := csv.NewReader(&buf).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1 + 3*2))
		Expect(records[0][0]).To(Equal("run"))
		Expect(records[1][:4]).To(Equal([]string{"r1", "0", "4", "global"}))
		Expect(records[2][3]).To(Equal("user"))
	})
})
