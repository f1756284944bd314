// Package gossip implements the per-node gossip learning protocol.
//
// A node wakes up once per round, picks a peer, and sends it a message.
// The message type decides what the receiver does with the model it
// carries and whether it answers:
//
//	PUSH       receiver merges, no answer
//	PULL       receiver answers with its model, no merge
//	PUSH_PULL  receiver merges, then answers with its updated model
//	REPLY      receiver merges, never answers
//
// Since nobody answers a REPLY, every exchange takes at most two hops.
package gossip
