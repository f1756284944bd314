package cmd

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/sarchlab/gossiplearn/config"
	"github.com/sarchlab/gossiplearn/data"
	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/simulation"
	"github.com/sarchlab/gossiplearn/topology"
)

// dataStream is the PCG stream of the dataset and its split, which all
// repetitions share. Repetition r uses stream r.
const dataStream = math.MaxUint64

// experiment turns a configuration into simulators.
type experiment struct {
	cfg        config.Config
	runID      string
	dim        int
	dispatcher data.Dispatcher
}

func newExperiment(cfg config.Config, runID string) (*experiment, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, dataStream))

	ds, err := loadDataset(cfg, rng)
	if err != nil {
		return nil, err
	}

	dispatcher, err := data.NewClassificationDispatcher(ds,
		data.DispatchOptions{
			Nodes:             cfg.Node.Count,
			EvalFraction:      cfg.Data.EvalFraction,
			LocalTestFraction: cfg.Data.LocalTestFraction,
		}, rng)
	if err != nil {
		return nil, err
	}

	return &experiment{
		cfg:        cfg,
		runID:      runID,
		dim:        ds.Dim(),
		dispatcher: dispatcher,
	}, nil
}

func loadDataset(cfg config.Config, rng *rand.Rand) (*model.Dataset, error) {
	if cfg.Data.Path == "" {
		labels := data.ZeroOne
		if cfg.Model.Kind == config.ModelPegasos {
			labels = data.PlusMinusOne
		}

		return data.Separable(cfg.Data.Samples, cfg.Data.Features,
			cfg.Data.Margin, labels, rng), nil
	}

	f, err := os.Open(cfg.Data.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := data.LoadCSV(f, cfg.Data.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Data.Path, err)
	}

	return ds, nil
}

func (e *experiment) simulationID(rep int) string {
	return fmt.Sprintf("%s-%d", e.runID, rep)
}

// simulator builds repetition rep. Its random source depends only on the
// seed and rep, so a repetition is reproducible on its own.
func (e *experiment) simulator(rep int) (*simulation.Simulator, error) {
	cfg := e.cfg
	pcg := rand.NewPCG(cfg.Seed, uint64(rep))
	rng := rand.New(pcg)

	network, err := newNetwork(cfg.Topology, cfg.Node.Count, rng)
	if err != nil {
		return nil, err
	}

	handler, err := newHandler(cfg.Model, e.dim)
	if err != nil {
		return nil, err
	}

	kind, err := gossip.ParseKind(cfg.Node.Kind)
	if err != nil {
		return nil, err
	}

	nodes, err := gossip.MakeBuilder().
		WithKind(kind).
		WithRoundLen(cfg.Node.RoundLen).
		WithSync(cfg.Node.Sync).
		WithModel(handler).
		WithLocalEpochs(cfg.Node.LocalEpochs).
		Build(e.dispatcher, network, rng)
	if err != nil {
		return nil, err
	}

	protocol, err := gossip.ParseProtocol(cfg.Simulation.Protocol)
	if err != nil {
		return nil, err
	}

	delay, err := newDelay(cfg.Simulation)
	if err != nil {
		return nil, err
	}

	return simulation.MakeBuilder().
		WithID(e.simulationID(rep)).
		WithNodes(nodes).
		WithNetwork(network).
		WithEvalSet(e.dispatcher.EvalSet()).
		WithProtocol(protocol).
		WithRoundLen(cfg.Node.RoundLen).
		WithDelay(delay).
		WithMessageFailureRate(cfg.Simulation.FailureRate).
		WithOnlineProb(cfg.Simulation.OnlineProb).
		WithSamplingEval(cfg.Simulation.SamplingEval).
		WithRandomSource(pcg).
		Build()
}

func newHandler(cfg config.ModelConfig, dim int) (model.Handler, error) {
	mode, err := model.ParseCreateMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case config.ModelSGD:
		return model.NewSGDHandler(dim, cfg.LearningRate, cfg.L2, mode), nil
	case config.ModelPegasos:
		return model.NewPegasosHandler(dim, cfg.Lambda, mode), nil
	default:
		return nil, fmt.Errorf("%w: model kind %q", config.ErrInvalidConfig, cfg.Kind)
	}
}

func newGenerator(cfg config.TopologyConfig, n int) (topology.Generator, error) {
	switch cfg.Kind {
	case config.TopologyFull:
		return func(*rand.Rand) (*topology.Adjacency, error) {
			return topology.FullyConnected(n), nil
		}, nil
	case config.TopologyRing:
		return func(*rand.Rand) (*topology.Adjacency, error) {
			return topology.Ring(n, cfg.Degree)
		}, nil
	case config.TopologyStar:
		return func(*rand.Rand) (*topology.Adjacency, error) {
			return topology.Star(n, cfg.Center)
		}, nil
	case config.TopologyRegular:
		return func(rng *rand.Rand) (*topology.Adjacency, error) {
			return topology.RandomRegular(n, cfg.Degree, rng)
		}, nil
	case config.TopologyErdosRenyi:
		return func(rng *rand.Rand) (*topology.Adjacency, error) {
			return topology.ErdosRenyi(n, cfg.Probability, rng)
		}, nil
	default:
		return nil, fmt.Errorf("%w: topology kind %q",
			config.ErrInvalidConfig, cfg.Kind)
	}
}

func newNetwork(
	cfg config.TopologyConfig,
	n int,
	rng *rand.Rand,
) (topology.Network, error) {
	gen, err := newGenerator(cfg, n)
	if err != nil {
		return nil, err
	}

	if cfg.Period > 0 {
		dynamic, err := topology.NewDynamicNetwork(n, cfg.Period, gen, rng)
		if err != nil {
			return nil, err
		}

		return dynamic, nil
	}

	var adj *topology.Adjacency
	if cfg.Kind != config.TopologyFull {
		if adj, err = gen(rng); err != nil {
			return nil, err
		}
	}

	static, err := topology.NewStaticNetwork(n, adj)
	if err != nil {
		return nil, err
	}

	return static, nil
}

func newDelay(cfg config.SimulationConfig) (simulation.Delay, error) {
	switch cfg.Delay {
	case config.DelayConstant:
		return simulation.ConstantDelay{Ticks: cfg.DelayMin}, nil
	case config.DelayUniform:
		return simulation.UniformDelay{Min: cfg.DelayMin, Max: cfg.DelayMax}, nil
	case config.DelayLinear:
		return simulation.LinearDelay{
			Base:         cfg.DelayMin,
			BytesPerTick: cfg.BytesPerTick,
		}, nil
	default:
		return nil, fmt.Errorf("%w: delay %q", config.ErrInvalidConfig, cfg.Delay)
	}
}
