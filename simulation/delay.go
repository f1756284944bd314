package simulation

import (
	"math/rand/v2"

	"github.com/sarchlab/gossiplearn/gossip"
)

// Delay decides how many ticks a message spends in flight. A delay of zero
// delivers the message in the tick it was sent.
type Delay interface {
	Draw(msg *gossip.Message, rng *rand.Rand) int
}

// ConstantDelay delays every message by the same number of ticks.
type ConstantDelay struct {
	Ticks int
}

// Draw returns Ticks.
func (d ConstantDelay) Draw(*gossip.Message, *rand.Rand) int {
	return d.Ticks
}

// UniformDelay draws the delay uniformly from [Min, Max].
type UniformDelay struct {
	Min int
	Max int
}

// Draw returns a delay between Min and Max, both included.
func (d UniformDelay) Draw(_ *gossip.Message, rng *rand.Rand) int {
	if d.Max <= d.Min {
		return d.Min
	}

	return d.Min + rng.IntN(d.Max-d.Min+1)
}

// LinearDelay grows with the message size.
type LinearDelay struct {
	Base         int
	BytesPerTick int
}

// Draw returns Base plus one tick per BytesPerTick bytes of payload.
func (d LinearDelay) Draw(msg *gossip.Message, _ *rand.Rand) int {
	if d.BytesPerTick < 1 {
		return d.Base
	}

	return d.Base + msg.Size()/d.BytesPerTick
}
