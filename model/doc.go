// Package model defines the trainable unit that gossip nodes exchange.
//
// A Handler owns a set of named parameter tensors and knows how to update
// them from local data, merge them with a peer's tensors, and evaluate them.
// Compose combines a local handler with a received one according to the
// handler's CreateMode.
package model
