package tracing

import (
	"go.uber.org/zap/zapcore"

	"github.com/sarchlab/gossiplearn/model"
)

type metricsMarshaler model.Metrics

func (m metricsMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("accuracy", m.Accuracy)
	enc.AddFloat64("precision", m.Precision)
	enc.AddFloat64("recall", m.Recall)
	enc.AddFloat64("f1_score", m.F1)
	enc.AddFloat64("auc", m.AUC)

	return nil
}
