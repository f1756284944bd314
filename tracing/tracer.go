// Package tracing turns simulator hooks into message and evaluation
// records.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/simulation"
)

// Outcome is what happened to a message at a hook position.
type Outcome string

// Message outcomes.
const (
	OutcomeSent      Outcome = "sent"
	OutcomeDropped   Outcome = "dropped"
	OutcomeOffline   Outcome = "offline"
	OutcomeDelivered Outcome = "delivered"
)

var outcomes = map[*hooking.HookPos]Outcome{
	simulation.HookPosMessageSent:      OutcomeSent,
	simulation.HookPosMessageDropped:   OutcomeDropped,
	simulation.HookPosMessageOffline:   OutcomeOffline,
	simulation.HookPosMessageDelivered: OutcomeDelivered,
}

// Tracer receives what happens in a simulation.
type Tracer interface {
	// Message is called whenever a message is sent, lost, or delivered.
	Message(tick int, outcome Outcome, msg *gossip.Message)

	// Round is called when a round has been evaluated.
	Round(eval simulation.RoundEvaluation)

	// End is called when a Start call returns.
	End(report *simulation.Report)
}

// CollectTrace lets the tracer collect traces from a domain.
func CollectTrace(domain hooking.Hookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		h, ok := hook.(*traceHook)
		if ok && h.t == tracer {
			panic(fmt.Sprintf("domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook forwards simulator hooks to a tracer.
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	if outcome, ok := outcomes[ctx.Pos]; ok {
		h.t.Message(ctx.Detail.(int), outcome, ctx.Item.(*gossip.Message))
		return
	}

	switch ctx.Pos {
	case simulation.HookPosRoundEvaluated:
		h.t.Round(ctx.Item.(simulation.RoundEvaluation))
	case simulation.HookPosSimulationEnd:
		h.t.End(ctx.Item.(*simulation.Report))
	}
}
