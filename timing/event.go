// Package timing provides the discrete-event engine that drives a gossip
// simulation's virtual clock.
package timing

// VTimeInCycle is a point on the virtual clock, counted in ticks.
type VTimeInCycle uint64

// Handler processes the events scheduled for it. Events are plain values;
// handlers tell them apart with a type switch.
type Handler interface {
	Handle(event any) error
}

// EventScheduler is the part of an engine that handlers see.
type EventScheduler interface {
	// CurrentTime returns the time of the event being processed.
	CurrentTime() VTimeInCycle

	// Schedule queues an event. Scheduling before CurrentTime panics.
	Schedule(event ScheduledEvent)
}

// ScheduledEvent is an event together with when and by whom it is handled.
type ScheduledEvent struct {
	Event   any
	Time    VTimeInCycle
	Handler Handler

	// IsSecondary events run after every primary event of the same time.
	IsSecondary bool

	seq uint64
}
