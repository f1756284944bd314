package simulation

import "github.com/sarchlab/gossiplearn/model"

// RoundEvaluation is the aggregate evaluation taken at the end of a round.
type RoundEvaluation struct {
	Round int
	Tick  int

	// Global is the mean over nodes of the metrics on the shared
	// evaluation set.
	Global    model.Metrics
	HasGlobal bool

	// User is the mean over nodes of the metrics on each node's own test
	// shard.
	User    model.Metrics
	HasUser bool
}

// Report collects what happened during a simulation. Evaluations only ever
// grow.
type Report struct {
	Evaluations []RoundEvaluation

	// Messages and Bytes count requests as they are sent, and replies once
	// they survive the failure draw.
	Messages int
	Bytes    int

	// Dropped counts messages of either kind lost to the failure draw.
	Dropped int
	Offline int

	// Interrupted is set when the run was cancelled before it finished.
	Interrupted bool
}

// Accuracy returns the accuracy of every round, preferring the global
// evaluation over the per-node one.
func (r *Report) Accuracy() []float64 {
	acc := make([]float64, len(r.Evaluations))
	for i, e := range r.Evaluations {
		if e.HasGlobal {
			acc[i] = e.Global.Accuracy
		} else {
			acc[i] = e.User.Accuracy
		}
	}

	return acc
}

// Last returns the most recent evaluation.
func (r *Report) Last() (RoundEvaluation, bool) {
	if len(r.Evaluations) == 0 {
		return RoundEvaluation{}, false
	}

	return r.Evaluations[len(r.Evaluations)-1], true
}
