package tracing

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/simulation"
)

// LogTracer writes rounds at info level and messages at debug level.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(logger *zap.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Message logs msg at debug level.
func (t *LogTracer) Message(tick int, outcome Outcome, msg *gossip.Message) {
	if ce := t.logger.Check(zap.DebugLevel, "message"); ce != nil {
		ce.Write(
			zap.Int("tick", tick),
			zap.String("outcome", string(outcome)),
			zap.Stringer("type", msg.Type),
			zap.Uint64("id", uint64(msg.ID)),
			zap.Int("sender", msg.Sender),
			zap.Int("receiver", msg.Receiver),
			zap.Int("bytes", msg.Size()),
		)
	}
}

// Round logs the round's aggregates.
func (t *LogTracer) Round(eval simulation.RoundEvaluation) {
	fields := []zap.Field{
		zap.Int("round", eval.Round),
		zap.Int("tick", eval.Tick),
	}

	if eval.HasGlobal {
		fields = append(fields, zap.Object("global", metricsMarshaler(eval.Global)))
	}

	if eval.HasUser {
		fields = append(fields, zap.Object("user", metricsMarshaler(eval.User)))
	}

	t.logger.Info("round evaluated", fields...)
}

// End logs the run totals.
func (t *LogTracer) End(report *simulation.Report) {
	t.logger.Info("simulation ended",
		zap.Int("rounds", len(report.Evaluations)),
		zap.Int("messages", report.Messages),
		zap.Int("bytes", report.Bytes),
		zap.Int("dropped", report.Dropped),
		zap.Int("offline", report.Offline),
		zap.Bool("interrupted", report.Interrupted),
	)
}
