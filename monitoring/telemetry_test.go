package monitoring_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sarchlab/gossiplearn/monitoring"
)

func findMetric(
	families []*dto.MetricFamily,
	name string,
	labels map[string]string,
) *dto.Metric {
	for _, f := range families {
		if f.GetName() != name {
			continue
		}

	metrics:
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if v, ok := labels[l.GetName()]; ok && v != l.GetValue() {
					continue metrics
				}
			}

			return m
		}
	}

	return nil
}

var _ = Describe("Telemetry", func() {
	It("should count messages and record accuracy", func() {
		reg := prometheus.NewRegistry()
		t := monitoring.NewTelemetry(reg)

		sim := newSimulator("tel")
		sim.AcceptHook(t)

		report, err := sim.Start(context.Background(), 2)
		Expect(err).NotTo(HaveOccurred())

		families, err := reg.Gather()
		Expect(err).NotTo(HaveOccurred())

		sent := findMetric(families, "gossip_messages_total", map[string]string{
			"simulation": "tel",
			"outcome":    "sent",
			"type":       "PUSH",
		})
		Expect(sent).NotTo(BeNil())
		Expect(sent.GetCounter().GetValue()).
			To(BeNumerically("==", report.Messages))

		bytes := findMetric(families, "gossip_message_bytes_total",
			map[string]string{"simulation": "tel"})
		Expect(bytes.GetCounter().GetValue()).
			To(BeNumerically("==", report.Bytes))

		final, _ := report.Last()
		acc := findMetric(families, "gossip_accuracy", map[string]string{
			"simulation": "tel",
			"scope":      "global",
		})
		Expect(acc).NotTo(BeNil())
		Expect(acc.GetGauge().GetValue()).
			To(BeNumerically("~", final.Global.Accuracy, 1e-12))
	})

	It("should refuse to register twice", func() {
		reg := prometheus.NewRegistry()
		monitoring.NewTelemetry(reg)

		Expect(func() { monitoring.NewTelemetry(reg) }).To(Panic())
	})
})
