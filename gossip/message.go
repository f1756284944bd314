package gossip

import (
	"fmt"

	"github.com/sarchlab/gossiplearn/idgen"
	"github.com/sarchlab/gossiplearn/model"
)

const degreeBytes = 8

// Payload is what a message carries. The handler is a snapshot owned by the
// message; nodes may train it in place. Pass-through nodes also attach the
// sender's degree.
type Payload struct {
	Handler   model.Handler
	Degree    int
	HasDegree bool
}

// Size returns the payload's byte cost.
func (p *Payload) Size() int {
	if p == nil || p.Handler == nil {
		return 0
	}

	size := p.Handler.Size()
	if p.HasDegree {
		size += degreeBytes
	}

	return size
}

// Message is the envelope exchanged between two nodes. The simulator stamps
// ID when it routes the message; nothing changes it afterwards.
type Message struct {
	ID        idgen.ID
	Timestamp int
	Type      MessageType
	Sender    int
	Receiver  int
	Value     *Payload
}

// Size returns the byte cost of the message, which is the size of its
// payload.
func (m *Message) Size() int {
	return m.Value.Size()
}

func (m *Message) String() string {
	return fmt.Sprintf("%v[%d] %d->%d @%d (%dB)",
		m.Type, m.ID, m.Sender, m.Receiver, m.Timestamp, m.Size())
}
