package monitoring_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/monitoring"
	"github.com/sarchlab/gossiplearn/simulation"
)

type nowEntry struct {
	Simulation string `json:"simulation"`
	Now        int    `json:"now"`
	End        int    `json:"end"`
	Paused     bool   `json:"paused"`
}

type blockingHook struct {
	reached chan struct{}
	release chan struct{}
}

func (h *blockingHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != simulation.HookPosRoundEvaluated {
		return
	}

	eval := ctx.Item.(simulation.RoundEvaluation)
	if eval.Round != 0 {
		return
	}

	close(h.reached)
	<-h.release
}

var _ = Describe("Monitor", func() {
	var (
		m      *monitoring.Monitor
		sim    *simulation.Simulator
		server *httptest.Server
	)

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	now := func() nowEntry {
		status, body := get("/api/now?sim=sim-a")
		Expect(status).To(Equal(http.StatusOK))

		var entries []nowEntry
		Expect(json.Unmarshal(body, &entries)).To(Succeed())
		Expect(entries).To(HaveLen(1))

		return entries[0]
	}

	BeforeEach(func() {
		m = monitoring.NewMonitor()
		sim = newSimulator("sim-a")
		m.RegisterSimulation(sim)
		server = httptest.NewServer(m.Handler())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should report the clock before the simulation starts", func() {
		Expect(now()).To(Equal(nowEntry{Simulation: "sim-a"}))
	})

	It("should reject unknown simulations", func() {
		status, _ := get("/api/now?sim=nope")
		Expect(status).To(Equal(http.StatusNotFound))

		status, _ = get("/api/list_nodes/nope")
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should list nodes", func() {
		status, body := get("/api/list_nodes/sim-a")
		Expect(status).To(Equal(http.StatusOK))

		var nodes []map[string]any
		Expect(json.Unmarshal(body, &nodes)).To(Succeed())
		Expect(nodes).To(HaveLen(testNodes))
		Expect(nodes[3]).To(HaveKeyWithValue("id", BeNumerically("==", 3)))
	})

	It("should serialize a node", func() {
		status, body := get("/api/node/sim-a/1")
		Expect(status).To(Equal(http.StatusOK))
		Expect(json.Valid(body)).To(BeTrue())

		status, _ = get("/api/node/sim-a/99")
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should reject malformed field requests", func() {
		status, _ := get("/api/field/not-json")
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("should track progress and export metrics", func() {
		_, err := sim.Start(context.Background(), 3)
		Expect(err).NotTo(HaveOccurred())

		status, body := get("/api/progress")
		Expect(status).To(Equal(http.StatusOK))

		var bars []monitoring.ProgressBar
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("sim-a"))
		Expect(bars[0].Rounds).To(BeEquivalentTo(3))
		Expect(bars[0].Finished).To(BeEquivalentTo(3 * testRoundLen))
		Expect(bars[0].Total).To(BeEquivalentTo(3 * testRoundLen))
		Expect(bars[0].Done).To(BeTrue())

		status, body = get("/metrics")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(
			`gossip_rounds_total{simulation="sim-a"} 3`))
		Expect(string(body)).To(ContainSubstring(
			`gossip_monitor_requests_total{route="/api/progress",status="200"} 1`))
	})

	It("should report process resources", func() {
		status, body := get("/api/resource")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("memory_size"))
	})

	It("should serve the page", func() {
		status, body := get("/")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should pause and continue a running simulation", func() {
		hook := &blockingHook{
			reached: make(chan struct{}),
			release: make(chan struct{}),
		}
		sim.AcceptHook(hook)

		done := make(chan *simulation.Report)
		go func() {
			defer GinkgoRecover()

			report, err := sim.Start(context.Background(), 3)
			Expect(err).NotTo(HaveOccurred())
			done <- report
		}()

		Eventually(hook.reached).Should(BeClosed())

		paused := make(chan int)
		go func() {
			defer GinkgoRecover()

			status, _ := get("/api/pause")
			paused <- status
		}()

		Eventually(sim.IsPaused).Should(BeTrue())
		Consistently(paused).ShouldNot(Receive())

		close(hook.release)
		Eventually(paused).Should(Receive(Equal(http.StatusOK)))

		before := now()
		Expect(before.Paused).To(BeTrue())
		Consistently(func() int { return now().Now }).
			Should(Equal(before.Now))

		status, _ := get("/api/continue")
		Expect(status).To(Equal(http.StatusOK))

		var report *simulation.Report
		Eventually(done).Should(Receive(&report))
		Expect(report.Evaluations).To(HaveLen(3))
	})
})
