package tracing

import (
	"sync"

	"github.com/sarchlab/gossiplearn/datarecording"
	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/simulation"
)

// Table names written by DBTracer.
const (
	MessageTable    = "messages"
	EvaluationTable = "evaluations"
	SummaryTable    = "summary"
)

// MessageEntry is one row of the messages table.
type MessageEntry struct {
	Run      string
	ID       uint64
	Tick     int
	Type     string
	Sender   int
	Receiver int
	Bytes    int
	Outcome  string
}

// EvaluationEntry is one row of the evaluations table. Scope is "global"
// for the shared evaluation set and "user" for the nodes' own test data.
type EvaluationEntry struct {
	Run       string
	Round     int
	Tick      int
	Scope     string
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	AUC       float64
}

// SummaryEntry is one row of the summary table, written at the end of every
// Start call.
type SummaryEntry struct {
	Run         string
	Rounds      int
	Messages    int
	Bytes       int
	Dropped     int
	Offline     int
	Interrupted bool
}

// DBTracer stores traces in a DataRecorder. Several tracers, one per run,
// may share a backend; their rows are told apart by the Run column.
type DBTracer struct {
	lock     sync.Mutex
	backend  datarecording.DataRecorder
	run      string
	messages bool
	err      error
}

type tableSpec struct {
	name   string
	sample any
}

// tablesLock serializes table creation across tracers sharing a backend.
var tablesLock sync.Mutex

// NewDBTracer creates the tables on backend unless they exist. Individual
// messages are only stored when withMessages is set.
func NewDBTracer(
	backend datarecording.DataRecorder,
	run string,
	withMessages bool,
) (*DBTracer, error) {
	tables := []tableSpec{
		{EvaluationTable, EvaluationEntry{}},
		{SummaryTable, SummaryEntry{}},
	}
	if withMessages {
		tables = append(tables, tableSpec{MessageTable, MessageEntry{}})
	}

	tablesLock.Lock()
	defer tablesLock.Unlock()

	existing := make(map[string]bool)
	for _, name := range backend.ListTables() {
		existing[name] = true
	}

	for _, t := range tables {
		if existing[t.name] {
			continue
		}

		if err := backend.CreateTable(t.name, t.sample); err != nil {
			return nil, err
		}
	}

	return &DBTracer{backend: backend, run: run, messages: withMessages}, nil
}

// Err returns the first error the backend reported.
func (t *DBTracer) Err() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.err
}

func (t *DBTracer) insert(table string, entry any) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.err != nil {
		return
	}

	t.err = t.backend.InsertData(table, entry)
}

// Message stores the message when message tracing is on.
func (t *DBTracer) Message(tick int, outcome Outcome, msg *gossip.Message) {
	if !t.messages {
		return
	}

	t.insert(MessageTable, MessageEntry{
		Run:      t.run,
		ID:       uint64(msg.ID),
		Tick:     tick,
		Type:     msg.Type.String(),
		Sender:   msg.Sender,
		Receiver: msg.Receiver,
		Bytes:    msg.Size(),
		Outcome:  string(outcome),
	})
}

// Round stores the global and per-node aggregates that exist.
func (t *DBTracer) Round(eval simulation.RoundEvaluation) {
	if eval.HasGlobal {
		t.insert(EvaluationTable, t.evaluationEntry(eval, "global", eval.Global))
	}

	if eval.HasUser {
		t.insert(EvaluationTable, t.evaluationEntry(eval, "user", eval.User))
	}
}

func (t *DBTracer) evaluationEntry(
	eval simulation.RoundEvaluation,
	scope string,
	m model.Metrics,
) EvaluationEntry {
	return EvaluationEntry{
		Run:       t.run,
		Round:     eval.Round,
		Tick:      eval.Tick,
		Scope:     scope,
		Accuracy:  m.Accuracy,
		Precision: m.Precision,
		Recall:    m.Recall,
		F1:        m.F1,
		AUC:       m.AUC,
	}
}

// End stores the run totals and flushes the backend.
func (t *DBTracer) End(report *simulation.Report) {
	t.insert(SummaryTable, SummaryEntry{
		Run:         t.run,
		Rounds:      len(report.Evaluations),
		Messages:    report.Messages,
		Bytes:       report.Bytes,
		Dropped:     report.Dropped,
		Offline:     report.Offline,
		Interrupted: report.Interrupted,
	})

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.err == nil {
		t.err = t.backend.Flush()
	}
}
