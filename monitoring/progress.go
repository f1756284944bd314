package monitoring

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/simulation"
)

// A ProgressBar tracks how many ticks of a simulation have been run.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Rounds    uint64    `json:"rounds"`
	Done      bool      `json:"done"`
}

// NewProgressBar creates a bar with the given name and total.
func NewProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}
}

// IncrementFinished adds a certain amount to the finished ticks.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// SetTotal changes the number of ticks to run.
func (b *ProgressBar) SetTotal(total uint64) {
	b.Lock()
	defer b.Unlock()

	b.Total = total
}

// Snapshot returns a copy that is safe to read without the lock.
func (b *ProgressBar) Snapshot() ProgressBar {
	b.Lock()
	defer b.Unlock()

	return ProgressBar{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
		Rounds:    b.Rounds,
		Done:      b.Done,
	}
}

// Func moves the bar forward on every evaluated round and marks it done at
// the end of the run.
func (b *ProgressBar) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case simulation.HookPosRoundEvaluated:
		eval := ctx.Item.(simulation.RoundEvaluation)

		b.Lock()
		b.Finished = uint64(eval.Tick + 1)
		b.Rounds++
		b.Unlock()
	case simulation.HookPosSimulationEnd:
		b.Lock()
		b.Done = true
		b.Unlock()
	}
}
