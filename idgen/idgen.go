// Package idgen provides deterministic ID generators.
package idgen

import "sync/atomic"

// ID is a unique identifier represented as a uint64.
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// Sequential emits 1, 2, 3, ... and can report where it is so that a
// checkpointed simulation resumes with the same ID stream.
type Sequential struct {
	next uint64
}

// New returns a sequential generator whose first emitted ID is "1".
func New() *Sequential {
	return &Sequential{}
}

// NewStartingAfter returns a sequential generator whose first emitted ID is
// last+1.
func NewStartingAfter(last ID) *Sequential {
	return &Sequential{next: uint64(last)}
}

// Generate returns the next ID.
func (g *Sequential) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}

// Last returns the most recently generated ID, or 0 if none.
func (g *Sequential) Last() ID {
	return ID(atomic.LoadUint64(&g.next))
}

var _ Generator = (*Sequential)(nil)
