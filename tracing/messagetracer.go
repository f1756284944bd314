package tracing

import (
	"sync"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/simulation"
)

type countKey struct {
	outcome Outcome
	msgType gossip.MessageType
}

// MessageTracer counts messages by outcome and type.
type MessageTracer struct {
	lock   sync.Mutex
	counts map[countKey]uint64
	bytes  map[Outcome]uint64
	rounds int
}

// NewMessageTracer creates a new MessageTracer.
func NewMessageTracer() *MessageTracer {
	return &MessageTracer{
		counts: make(map[countKey]uint64),
		bytes:  make(map[Outcome]uint64),
	}
}

// Message counts msg.
func (t *MessageTracer) Message(_ int, outcome Outcome, msg *gossip.Message) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.counts[countKey{outcome, msg.Type}]++
	t.bytes[outcome] += uint64(msg.Size())
}

// Round counts evaluated rounds.
func (t *MessageTracer) Round(simulation.RoundEvaluation) {
	t.lock.Lock()
	t.rounds++
	t.lock.Unlock()
}

// End does nothing.
func (t *MessageTracer) End(*simulation.Report) {}

// Count returns the number of messages of type msgType with the given
// outcome.
func (t *MessageTracer) Count(outcome Outcome, msgType gossip.MessageType) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[countKey{outcome, msgType}]
}

// Total returns the number of messages with the given outcome.
func (t *MessageTracer) Total(outcome Outcome) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	var n uint64
	for k, c := range t.counts {
		if k.outcome == outcome {
			n += c
		}
	}

	return n
}

// Bytes returns the payload volume of messages with the given outcome.
func (t *MessageTracer) Bytes(outcome Outcome) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.bytes[outcome]
}

// Rounds returns the number of evaluated rounds.
func (t *MessageTracer) Rounds() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.rounds
}
