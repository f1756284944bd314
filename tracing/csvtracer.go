package tracing

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/simulation"
)

var csvHeader = []string{
	"run", "round", "tick", "scope",
	"accuracy", "precision", "recall", "f1_score", "auc",
}

// CSVTracer writes one line per round and scope. Lines are buffered until
// the end of the run or until bufferSize rounds have been evaluated.
type CSVTracer struct {
	lock       sync.Mutex
	w          *csv.Writer
	run        string
	rows       [][]string
	bufferSize int
	err        error
}

// NewCSVTracer writes the header to w.
func NewCSVTracer(w io.Writer, run string) (*CSVTracer, error) {
	t := &CSVTracer{
		w:          csv.NewWriter(w),
		run:        run,
		bufferSize: 1000,
	}

	if err := t.w.Write(csvHeader); err != nil {
		return nil, err
	}

	return t, nil
}

// Err returns the first write error.
func (t *CSVTracer) Err() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.err
}

// Message does nothing.
func (t *CSVTracer) Message(int, Outcome, *gossip.Message) {}

// Round buffers the round's aggregates.
func (t *CSVTracer) Round(eval simulation.RoundEvaluation) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if eval.HasGlobal {
		t.rows = append(t.rows, t.row(eval, "global", eval.Global))
	}

	if eval.HasUser {
		t.rows = append(t.rows, t.row(eval, "user", eval.User))
	}

	if len(t.rows) >= t.bufferSize {
		t.flush()
	}
}

func (t *CSVTracer) row(
	eval simulation.RoundEvaluation,
	scope string,
	m model.Metrics,
) []string {
	f := func(v float64) string {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	return []string{
		t.run,
		strconv.Itoa(eval.Round),
		strconv.Itoa(eval.Tick),
		scope,
		f(m.Accuracy), f(m.Precision), f(m.Recall), f(m.F1), f(m.AUC),
	}
}

// End flushes the buffered lines.
func (t *CSVTracer) End(*simulation.Report) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flush()
}

func (t *CSVTracer) flush() {
	if t.err == nil {
		t.err = t.w.WriteAll(t.rows)
	}

	t.rows = nil
}
