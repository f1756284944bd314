package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/sarchlab/gossiplearn/config"
	"github.com/sarchlab/gossiplearn/datarecording"
	"github.com/sarchlab/gossiplearn/monitoring"
	"github.com/sarchlab/gossiplearn/simulation"
	"github.com/sarchlab/gossiplearn/tracing"
)

// override applies a flag to the configuration when the flag was given.
type override struct {
	flag  string
	apply func(cfg *config.Config)
}

var runFlags struct {
	seed           uint64
	rounds         int
	repetitions    int
	parallelism    int
	nodes          int
	nodeKind       string
	roundLen       int
	async          bool
	protocol       string
	topology       string
	failureRate    float64
	onlineProb     float64
	output         string
	noOutput       bool
	recordMessages bool
	csv            string
	checkpoint     string
	monitor        bool
	monitorPort    int
	openMonitor    bool
}

var runOverrides = []override{
	{"seed", func(c *config.Config) { c.Seed = runFlags.seed }},
	{"rounds", func(c *config.Config) { c.Rounds = runFlags.rounds }},
	{"repetitions", func(c *config.Config) { c.Repetitions = runFlags.repetitions }},
	{"parallelism", func(c *config.Config) { c.Parallelism = runFlags.parallelism }},
	{"nodes", func(c *config.Config) { c.Node.Count = runFlags.nodes }},
	{"node-kind", func(c *config.Config) { c.Node.Kind = runFlags.nodeKind }},
	{"round-len", func(c *config.Config) { c.Node.RoundLen = runFlags.roundLen }},
	{"async", func(c *config.Config) { c.Node.Sync = !runFlags.async }},
	{"protocol", func(c *config.Config) { c.Simulation.Protocol = runFlags.protocol }},
	{"topology", func(c *config.Config) { c.Topology.Kind = runFlags.topology }},
	{"failure-rate", func(c *config.Config) { c.Simulation.FailureRate = runFlags.failureRate }},
	{"online-prob", func(c *config.Config) { c.Simulation.OnlineProb = runFlags.onlineProb }},
	{"output", func(c *config.Config) { c.Output.Path = runFlags.output }},
	{"no-output", func(c *config.Config) { c.Output.Disabled = runFlags.noOutput }},
	{"record-messages", func(c *config.Config) { c.Output.Messages = runFlags.recordMessages }},
	{"csv", func(c *config.Config) { c.Output.CSV = runFlags.csv }},
	{"checkpoint", func(c *config.Config) { c.Output.Checkpoint = runFlags.checkpoint }},
	{"monitor", func(c *config.Config) { c.Monitor.Enabled = runFlags.monitor }},
	{"monitor-port", func(c *config.Config) { c.Monitor.Port = runFlags.monitorPort }},
	{"open-monitor", func(c *config.Config) {
		c.Monitor.OpenBrowser = runFlags.openMonitor
		c.Monitor.Enabled = c.Monitor.Enabled || runFlags.openMonitor
	}},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an experiment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, o := range runOverrides {
			if cmd.Flags().Changed(o.flag) {
				o.apply(&cfg)
			}
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		reports, err := runExperiment(ctx, cfg, logger)
		printSummary(cmd.OutOrStdout(), reports)

		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.Uint64Var(&runFlags.seed, "seed", 0, "random seed")
	f.IntVarP(&runFlags.rounds, "rounds", "r", 0, "rounds per repetition")
	f.IntVar(&runFlags.repetitions, "repetitions", 0, "independent repetitions")
	f.IntVarP(&runFlags.parallelism, "parallelism", "p", 0, "repetitions run at the same time")
	f.IntVarP(&runFlags.nodes, "nodes", "n", 0, "number of nodes")
	f.StringVar(&runFlags.nodeKind, "node-kind", "", "plain, passthrough, cache, or federated")
	f.IntVar(&runFlags.roundLen, "round-len", 0, "ticks per round")
	f.BoolVar(&runFlags.async, "async", false, "let nodes drift from the round boundaries")
	f.StringVar(&runFlags.protocol, "protocol", "", "push, pull, or push_pull")
	f.StringVar(&runFlags.topology, "topology", "", "full, ring, star, regular, or erdos_renyi")
	f.Float64Var(&runFlags.failureRate, "failure-rate", 0, "probability that a message is lost")
	f.Float64Var(&runFlags.onlineProb, "online-prob", 0, "probability that a receiver is online")
	f.StringVarP(&runFlags.output, "output", "o", "", "SQLite output path, without extension")
	f.BoolVar(&runFlags.noOutput, "no-output", false, "do not record to SQLite")
	f.BoolVar(&runFlags.recordMessages, "record-messages", false, "record every message")
	f.StringVar(&runFlags.csv, "csv", "", "write round evaluations to this CSV file")
	f.StringVar(&runFlags.checkpoint, "checkpoint", "", "save a checkpoint of each repetition here")
	f.BoolVar(&runFlags.monitor, "monitor", false, "serve the HTTP monitor")
	f.IntVar(&runFlags.monitorPort, "monitor-port", 0, "monitor port, random if 0")
	f.BoolVar(&runFlags.openMonitor, "open-monitor", false, "open the monitor in a browser")

	rootCmd.AddCommand(runCmd)
}

// runExperiment runs every repetition of cfg and returns the reports of the
// ones that ran, even when ctx is cancelled part way.
func runExperiment(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) ([]*simulation.Report, error) {
	runID := xid.New().String()
	logger = logger.With(zap.String("run", runID))

	exp, err := newExperiment(cfg, runID)
	if err != nil {
		return nil, err
	}

	var recorder datarecording.DataRecorder
	if !cfg.Output.Disabled {
		w, err := datarecording.New(cfg.Output.Path)
		if err != nil {
			return nil, err
		}
		defer w.Close()

		recorder = w
		logger.Info("recording", zap.String("file", w.Filename()))

		exec, err := datarecording.NewExecRecorder(w)
		if err != nil {
			return nil, err
		}

		exec.Start()
		exec.Set("Run", runID)
		exec.Set("Config", cfg.String())
		defer func() {
			if err := exec.End(); err != nil {
				logger.Error("recording execution info", zap.Error(err))
			}
		}()
	}

	var monitor *monitoring.Monitor
	if cfg.Monitor.Enabled {
		monitor = monitoring.NewMonitor().
			WithLogger(logger).
			WithPortNumber(cfg.Monitor.Port)

		url, err := monitor.StartServer()
		if err != nil {
			return nil, err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), time.Second)
			defer cancel()
			_ = monitor.Shutdown(shutdownCtx)
		}()

		if cfg.Monitor.OpenBrowser {
			if err := browser.OpenURL(url); err != nil {
				logger.Warn("opening browser", zap.Error(err))
			}
		}
	}

	var (
		simsLock sync.Mutex
		sims     = make([]*simulation.Simulator, cfg.Repetitions)
	)

	factory := func(rep int) (*simulation.Simulator, error) {
		s, err := exp.simulator(rep)
		if err != nil {
			return nil, err
		}

		repLogger := logger.With(zap.Int("rep", rep))
		tracing.CollectTrace(s, tracing.NewLogTracer(repLogger))

		if recorder != nil {
			t, err := tracing.NewDBTracer(recorder, s.ID(), cfg.Output.Messages)
			if err != nil {
				return nil, err
			}

			tracing.CollectTrace(s, t)
		}

		if cfg.Output.CSV != "" {
			t, err := newCSVTracer(
				repPath(cfg.Output.CSV, rep, cfg.Repetitions), s.ID())
			if err != nil {
				return nil, err
			}

			tracing.CollectTrace(s, t)
		}

		if monitor != nil {
			monitor.RegisterSimulation(s)
		}

		simsLock.Lock()
		sims[rep] = s
		simsLock.Unlock()

		repLogger.Info("repetition starting", zap.String("simulation", s.ID()))

		return s, nil
	}

	reports, err := simulation.Repeat(ctx, factory,
		cfg.Repetitions, cfg.Rounds, cfg.Parallelism)

	if ctx.Err() != nil {
		logger.Warn("interrupted", zap.Int("finished", len(reports)))
	}

	if cfg.Output.Checkpoint != "" {
		for rep, s := range sims {
			if s == nil {
				continue
			}

			path := repPath(cfg.Output.Checkpoint, rep, cfg.Repetitions)
			if err := saveCheckpoint(s, path); err != nil {
				return reports, err
			}

			logger.Info("checkpoint saved", zap.String("file", path))
		}
	}

	return reports, err
}

// repPath names the file of one repetition. A single repetition uses base
// itself.
func repPath(base string, rep, repetitions int) string {
	if repetitions == 1 {
		return base
	}

	return base + "." + strconv.Itoa(rep)
}

// newCSVTracer creates the file at path; it is closed when the program
// exits.
func newCSVTracer(path, run string) (*tracing.CSVTracer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = f.Close() })

	return tracing.NewCSVTracer(f, run)
}

func saveCheckpoint(s *simulation.Simulator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := s.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("saving %s: %w", path, err)
	}

	return f.Close()
}
