package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/simulation"
)

// Telemetry exports simulator hooks as Prometheus metrics. Every series is
// labelled with the simulation ID so that repeated runs can share one
// registry.
type Telemetry struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	rounds   *prometheus.CounterVec
	tick     *prometheus.GaugeVec
	accuracy *prometheus.GaugeVec
	f1       *prometheus.GaugeVec
}

// NewTelemetry creates the collectors and registers them with reg.
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gossip",
			Name:      "messages_total",
			Help:      "Messages by outcome and type.",
		}, []string{"simulation", "outcome", "type"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gossip",
			Name:      "message_bytes_total",
			Help:      "Payload bytes of sent messages.",
		}, []string{"simulation"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gossip",
			Name:      "rounds_total",
			Help:      "Evaluated rounds.",
		}, []string{"simulation"}),
		tick: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gossip",
			Name:      "tick",
			Help:      "Last tick that ended a round.",
		}, []string{"simulation"}),
		accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gossip",
			Name:      "accuracy",
			Help:      "Mean accuracy of the last evaluated round.",
		}, []string{"simulation", "scope"}),
		f1: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gossip",
			Name:      "f1_score",
			Help:      "Mean F1 score of the last evaluated round.",
		}, []string{"simulation", "scope"}),
	}

	reg.MustRegister(t.messages, t.bytes, t.rounds, t.tick, t.accuracy, t.f1)

	return t
}

var outcomeLabels = map[*hooking.HookPos]string{
	simulation.HookPosMessageSent:      "sent",
	simulation.HookPosMessageDropped:   "dropped",
	simulation.HookPosMessageOffline:   "offline",
	simulation.HookPosMessageDelivered: "delivered",
}

// Func updates the metrics.
func (t *Telemetry) Func(ctx hooking.HookCtx) {
	sim, ok := ctx.Domain.(interface{ ID() string })
	if !ok {
		return
	}

	id := sim.ID()

	if outcome, ok := outcomeLabels[ctx.Pos]; ok {
		msg := ctx.Item.(*gossip.Message)
		t.messages.WithLabelValues(id, outcome, msg.Type.String()).Inc()

		if ctx.Pos == simulation.HookPosMessageSent {
			t.bytes.WithLabelValues(id).Add(float64(msg.Size()))
		}

		return
	}

	if ctx.Pos != simulation.HookPosRoundEvaluated {
		return
	}

	eval := ctx.Item.(simulation.RoundEvaluation)
	t.rounds.WithLabelValues(id).Inc()
	t.tick.WithLabelValues(id).Set(float64(eval.Tick))

	if eval.HasGlobal {
		t.accuracy.WithLabelValues(id, "global").Set(eval.Global.Accuracy)
		t.f1.WithLabelValues(id, "global").Set(eval.Global.F1)
	}

	if eval.HasUser {
		t.accuracy.WithLabelValues(id, "user").Set(eval.User.Accuracy)
		t.f1.WithLabelValues(id, "user").Set(eval.User.F1)
	}
}
