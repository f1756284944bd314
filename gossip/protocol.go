package gossip

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProtocol is returned by Send for a protocol it does not know.
	ErrUnknownProtocol = errors.New("gossip: unknown protocol")

	// ErrUnknownMessageType is returned by Receive for a message type it
	// does not know.
	ErrUnknownMessageType = errors.New("gossip: unknown message type")

	// ErrNoPeer means a node has nobody to talk to.
	ErrNoPeer = errors.New("gossip: no eligible peer")

	// ErrEmptyPayload is returned when a message that must carry a model
	// arrives without one.
	ErrEmptyPayload = errors.New("gossip: message carries no model")
)

// Protocol is the anti-entropy scheme a node uses when it initiates an
// exchange.
type Protocol int

// Supported protocols.
const (
	ProtocolPush Protocol = iota + 1
	ProtocolPull
	ProtocolPushPull
)

var protocolNames = map[Protocol]string{
	ProtocolPush:     "push",
	ProtocolPull:     "pull",
	ProtocolPushPull: "push_pull",
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Protocol(%d)", int(p))
}

// ParseProtocol converts a name such as "push_pull" into a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range protocolNames {
		if name == s {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}

// MessageType tells the receiver what to do with a message.
type MessageType int

// Message types.
const (
	TypePush MessageType = iota + 1
	TypePull
	TypePushPull
	TypeReply
)

var messageTypeNames = map[MessageType]string{
	TypePush:     "PUSH",
	TypePull:     "PULL",
	TypePushPull: "PUSH_PULL",
	TypeReply:    "REPLY",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("MessageType(%d)", int(t))
}

func (p Protocol) messageType() (MessageType, error) {
	switch p {
	case ProtocolPush:
		return TypePush, nil
	case ProtocolPull:
		return TypePull, nil
	case ProtocolPushPull:
		return TypePushPull, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownProtocol, p)
	}
}
