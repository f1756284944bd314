package timing

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// SerialEngine processes scheduled events one at a time in time order.
// Events of equal time run in the order they were scheduled, primary ones
// first.
type SerialEngine struct {
	mu   sync.Mutex
	cond *sync.Cond

	now            VTimeInCycle
	queue          eventQueue
	secondaryQueue eventQueue
	nextSeq        uint64

	paused bool
	busy   bool

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	e := &SerialEngine{
		queue:          newScheduledEventQueue(),
		secondaryQueue: newScheduledEventQueue(),
	}
	e.cond = sync.NewCond(&e.mu)

	return e
}

// Schedule queues evt. It may be called from a handler.
func (e *SerialEngine) Schedule(evt ScheduledEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if evt.Time < e.now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Event), evt.Time, e.now,
		))
	}

	evt.seq = e.nextSeq
	e.nextSeq++

	if evt.IsSecondary {
		e.secondaryQueue.Push(&evt)
		return
	}

	e.queue.Push(&evt)
}

// Run processes all scheduled events until completion.
func (e *SerialEngine) Run() error {
	return e.RunContext(context.Background())
}

// RunContext processes events until the queues drain, a handler fails, or
// ctx is cancelled. Cancellation is noticed between events, also while
// paused. Events left behind stay queued, so the engine can run again.
func (e *SerialEngine) RunContext(ctx context.Context) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	for {
		evt, err := e.take(ctx)
		if err != nil || evt == nil {
			return err
		}

		if evt.Handler != nil {
			err = evt.Handler.Handle(evt.Event)
		}

		e.mu.Lock()
		e.busy = false
		e.cond.Broadcast()
		e.mu.Unlock()

		if err != nil {
			return err
		}
	}
}

// take waits while paused and pops the next event. It returns nil when
// there is nothing left to do.
func (e *SerialEngine) take(ctx context.Context) (*ScheduledEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.paused && ctx.Err() == nil {
		e.cond.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	evt := e.nextEvent()
	if evt == nil {
		return nil, nil
	}

	e.now = evt.Time
	e.busy = true

	return evt, nil
}

func (e *SerialEngine) nextEvent() *ScheduledEvent {
	primary := e.queue.Peek()
	secondary := e.secondaryQueue.Peek()

	switch {
	case primary == nil && secondary == nil:
		return nil
	case secondary == nil:
		return e.queue.Pop()
	case primary == nil:
		return e.secondaryQueue.Pop()
	case primary.Time <= secondary.Time:
		return e.queue.Pop()
	default:
		return e.secondaryQueue.Pop()
	}
}

// Pause stops the engine before its next event. The event in progress, if
// any, completes. Pause does not wait for it, so a handler may call it.
func (e *SerialEngine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// WaitIdle blocks until no event is being processed. Combined with Pause it
// gives the caller a consistent view of the handlers' state. Calling it from
// a handler deadlocks.
func (e *SerialEngine) WaitIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.busy {
		e.cond.Wait()
	}
}

// Continue resumes event processing after a Pause.
func (e *SerialEngine) Continue() {
	e.mu.Lock()
	e.paused = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

// IsPaused tells if a pause has been requested and not lifted.
func (e *SerialEngine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.paused
}

// CurrentTime returns the time of the most recent event.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.now
}

// Pending returns the number of queued events.
func (e *SerialEngine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.queue.Len() + e.secondaryQueue.Len()
}

var _ EventScheduler = (*SerialEngine)(nil)
