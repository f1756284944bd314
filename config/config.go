// Package config describes a simulation experiment. A configuration is read
// from a YAML file, then overridden by GOSSIP_* environment variables (which
// may come from a .env file), and finally by command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/model"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix is the prefix of all environment variables.
const EnvPrefix = "GOSSIP_"

// Config holds everything needed to run an experiment.
type Config struct {
	Seed        uint64 `yaml:"seed"        env:"SEED"`
	Rounds      int    `yaml:"rounds"      env:"ROUNDS"`
	Repetitions int    `yaml:"repetitions" env:"REPETITIONS"`
	Parallelism int    `yaml:"parallelism" env:"PARALLELISM"`
	LogLevel    string `yaml:"log_level"   env:"LOG_LEVEL"`

	Data       DataConfig       `yaml:"data"       envPrefix:"DATA_"`
	Model      ModelConfig      `yaml:"model"      envPrefix:"MODEL_"`
	Node       NodeConfig       `yaml:"node"       envPrefix:"NODE_"`
	Topology   TopologyConfig   `yaml:"topology"   envPrefix:"TOPOLOGY_"`
	Simulation SimulationConfig `yaml:"simulation" envPrefix:"SIM_"`
	Output     OutputConfig     `yaml:"output"     envPrefix:"OUTPUT_"`
	Monitor    MonitorConfig    `yaml:"monitor"    envPrefix:"MONITOR_"`
}

// DataConfig selects the dataset. Without a path, a linearly separable
// synthetic dataset is generated.
type DataConfig struct {
	Path              string  `yaml:"path"                env:"PATH"`
	LabelColumn       int     `yaml:"label_column"        env:"LABEL_COLUMN"`
	Samples           int     `yaml:"samples"             env:"SAMPLES"`
	Features          int     `yaml:"features"            env:"FEATURES"`
	Margin            float64 `yaml:"margin"              env:"MARGIN"`
	EvalFraction      float64 `yaml:"eval_fraction"       env:"EVAL_FRACTION"`
	LocalTestFraction float64 `yaml:"local_test_fraction" env:"LOCAL_TEST_FRACTION"`
}

// ModelConfig selects the model handler.
type ModelConfig struct {
	Kind         string  `yaml:"kind"          env:"KIND"`
	Mode         string  `yaml:"mode"          env:"MODE"`
	LearningRate float64 `yaml:"learning_rate" env:"LEARNING_RATE"`
	L2           float64 `yaml:"l2"            env:"L2"`
	Lambda       float64 `yaml:"lambda"        env:"LAMBDA"`
}

// NodeConfig describes the population.
type NodeConfig struct {
	Kind        string `yaml:"kind"         env:"KIND"`
	Count       int    `yaml:"count"        env:"COUNT"`
	RoundLen    int    `yaml:"round_len"    env:"ROUND_LEN"`
	Sync        bool   `yaml:"sync"         env:"SYNC"`
	LocalEpochs int    `yaml:"local_epochs" env:"LOCAL_EPOCHS"`
}

// TopologyConfig describes who may talk to whom. A positive Period makes
// the network dynamic, regenerating it every Period ticks.
type TopologyConfig struct {
	Kind        string  `yaml:"kind"        env:"KIND"`
	Degree      int     `yaml:"degree"      env:"DEGREE"`
	Probability float64 `yaml:"probability" env:"PROBABILITY"`
	Center      int     `yaml:"center"      env:"CENTER"`
	Period      int     `yaml:"period"      env:"PERIOD"`
}

// SimulationConfig holds the simulator parameters.
type SimulationConfig struct {
	Protocol     string  `yaml:"protocol"      env:"PROTOCOL"`
	FailureRate  float64 `yaml:"failure_rate"  env:"FAILURE_RATE"`
	OnlineProb   float64 `yaml:"online_prob"   env:"ONLINE_PROB"`
	SamplingEval float64 `yaml:"sampling_eval" env:"SAMPLING_EVAL"`
	Delay        string  `yaml:"delay"         env:"DELAY"`
	DelayMin     int     `yaml:"delay_min"     env:"DELAY_MIN"`
	DelayMax     int     `yaml:"delay_max"     env:"DELAY_MAX"`
	BytesPerTick int     `yaml:"bytes_per_tick" env:"BYTES_PER_TICK"`
}

// OutputConfig controls what is written to disk. An empty Path picks a
// unique name.
type OutputConfig struct {
	Path       string `yaml:"path"       env:"PATH"`
	Disabled   bool   `yaml:"disabled"   env:"DISABLED"`
	Messages   bool   `yaml:"messages"   env:"MESSAGES"`
	CSV        string `yaml:"csv"        env:"CSV"`
	Checkpoint string `yaml:"checkpoint" env:"CHECKPOINT"`
}

// MonitorConfig controls the HTTP monitor.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"      env:"ENABLED"`
	Port        int  `yaml:"port"         env:"PORT"`
	OpenBrowser bool `yaml:"open_browser" env:"OPEN_BROWSER"`
}

// Topology kinds.
const (
	TopologyFull       = "full"
	TopologyRing       = "ring"
	TopologyStar       = "star"
	TopologyRegular    = "regular"
	TopologyErdosRenyi = "erdos_renyi"
)

// Model kinds.
const (
	ModelSGD     = "sgd"
	ModelPegasos = "pegasos"
)

// Delay kinds.
const (
	DelayConstant = "constant"
	DelayUniform  = "uniform"
	DelayLinear   = "linear"
)

// Default returns a small push-gossip experiment on synthetic data.
func Default() Config {
	return Config{
		Seed:        42,
		Rounds:      100,
		Repetitions: 1,
		Parallelism: 1,
		LogLevel:    "info",
		Data: DataConfig{
			LabelColumn:       -1,
			Samples:           1000,
			Features:          2,
			Margin:            0.5,
			EvalFraction:      0.2,
			LocalTestFraction: 0,
		},
		Model: ModelConfig{
			Kind:         ModelSGD,
			Mode:         model.ModeMergeUpdate.String(),
			LearningRate: 0.1,
			L2:           0.001,
			Lambda:       0.01,
		},
		Node: NodeConfig{
			Kind:        gossip.KindPlain.String(),
			Count:       100,
			RoundLen:    100,
			Sync:        true,
			LocalEpochs: 1,
		},
		Topology: TopologyConfig{
			Kind:        TopologyFull,
			Degree:      4,
			Probability: 0.1,
		},
		Simulation: SimulationConfig{
			Protocol:   gossip.ProtocolPush.String(),
			OnlineProb: 1,
			Delay:      DelayConstant,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := cfg.Decode(f); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Decode reads YAML from r into c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// Encode writes c as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return err
	}

	return enc.Close()
}

// String renders c as YAML.
func (c Config) String() string {
	var buf bytes.Buffer
	_ = c.Encode(&buf)

	return buf.String()
}

// ApplyEnv loads the dotenv files that exist, then overrides the fields whose
// GOSSIP_* variables are set. Variables already in the environment win over
// the ones in the files.
func (c *Config) ApplyEnv(dotenvFiles ...string) error {
	var files []string
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}

	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("config: loading %v: %w", files, err)
		}
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

func checkRate(name string, v float64) error {
	if v < 0 || v > 1 {
		return invalid("%s must be in [0, 1], got %v", name, v)
	}

	return nil
}

// Validate reports every problem found in c.
func (c Config) Validate() error {
	var errs []error

	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if c.Rounds < 1 {
		add(invalid("rounds must be positive, got %d", c.Rounds))
	}

	if c.Repetitions < 1 {
		add(invalid("repetitions must be positive, got %d", c.Repetitions))
	}

	if c.Parallelism < 1 {
		add(invalid("parallelism must be positive, got %d", c.Parallelism))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		add(invalid("log_level: %v", err))
	}

	add(c.Data.validate())
	add(c.Model.validate())
	add(c.Node.validate())
	add(c.Topology.validate(c.Node.Count))
	add(c.Simulation.validate())

	if c.Monitor.Port != 0 && (c.Monitor.Port < 1000 || c.Monitor.Port > 65535) {
		add(invalid("monitor port must be 0 or in [1000, 65535], got %d",
			c.Monitor.Port))
	}

	return errors.Join(errs...)
}

func (d DataConfig) validate() error {
	var errs []error

	if d.Path == "" {
		if d.Samples < 1 {
			errs = append(errs, invalid("data samples must be positive"))
		}

		if d.Features < 1 {
			errs = append(errs, invalid("data features must be positive"))
		}
	}

	if d.EvalFraction < 0 || d.EvalFraction >= 1 {
		errs = append(errs,
			invalid("eval_fraction must be in [0, 1), got %v", d.EvalFraction))
	}

	if d.LocalTestFraction < 0 || d.LocalTestFraction >= 1 {
		errs = append(errs, invalid("local_test_fraction must be in [0, 1), got %v",
			d.LocalTestFraction))
	}

	return errors.Join(errs...)
}

func (m ModelConfig) validate() error {
	var errs []error

	if _, err := model.ParseCreateMode(m.Mode); err != nil {
		errs = append(errs, invalid("model mode: %v", err))
	}

	switch m.Kind {
	case ModelSGD:
		if m.LearningRate <= 0 {
			errs = append(errs, invalid("learning_rate must be positive"))
		}

		if m.L2 < 0 {
			errs = append(errs, invalid("l2 must not be negative"))
		}
	case ModelPegasos:
		if m.Lambda <= 0 {
			errs = append(errs, invalid("lambda must be positive"))
		}
	default:
		errs = append(errs, invalid("unknown model kind %q", m.Kind))
	}

	return errors.Join(errs...)
}

func (n NodeConfig) validate() error {
	var errs []error

	if _, err := gossip.ParseKind(n.Kind); err != nil {
		errs = append(errs, invalid("node kind: %v", err))
	}

	if n.Count < 2 {
		errs = append(errs, invalid("at least two nodes are needed, got %d",
			n.Count))
	}

	if n.RoundLen < 1 {
		errs = append(errs, invalid("round_len must be positive, got %d",
			n.RoundLen))
	}

	if n.LocalEpochs < 1 {
		errs = append(errs, invalid("local_epochs must be positive, got %d",
			n.LocalEpochs))
	}

	return errors.Join(errs...)
}

func (t TopologyConfig) validate(nodes int) error {
	var errs []error

	switch t.Kind {
	case TopologyFull:
	case TopologyRing:
		if t.Degree < 1 || 2*t.Degree >= nodes {
			errs = append(errs, invalid(
				"ring degree must be in [1, %d), got %d", (nodes+1)/2, t.Degree))
		}
	case TopologyStar:
		if t.Center < 0 || t.Center >= nodes {
			errs = append(errs, invalid("star center %d out of range", t.Center))
		}
	case TopologyRegular:
		if t.Degree < 1 || t.Degree >= nodes || (t.Degree*nodes)%2 != 0 {
			errs = append(errs, invalid(
				"no %d-regular graph on %d nodes", t.Degree, nodes))
		}
	case TopologyErdosRenyi:
		errs = append(errs, checkRate("topology probability", t.Probability))
	default:
		errs = append(errs, invalid("unknown topology kind %q", t.Kind))
	}

	if t.Period < 0 {
		errs = append(errs, invalid("topology period must not be negative"))
	}

	return errors.Join(errs...)
}

func (s SimulationConfig) validate() error {
	var errs []error

	if _, err := gossip.ParseProtocol(s.Protocol); err != nil {
		errs = append(errs, invalid("protocol: %v", err))
	}

	errs = append(errs,
		checkRate("failure_rate", s.FailureRate),
		checkRate("online_prob", s.OnlineProb),
		checkRate("sampling_eval", s.SamplingEval),
	)

	switch s.Delay {
	case DelayConstant:
		if s.DelayMin < 0 {
			errs = append(errs, invalid("delay_min must not be negative"))
		}
	case DelayUniform:
		if s.DelayMin < 0 || s.DelayMax < s.DelayMin {
			errs = append(errs, invalid("uniform delay needs 0 <= min <= max, got [%d, %d]",
				s.DelayMin, s.DelayMax))
		}
	case DelayLinear:
		if s.DelayMin < 0 || s.BytesPerTick < 1 {
			errs = append(errs, invalid(
				"linear delay needs a non-negative base and positive bytes_per_tick"))
		}
	default:
		errs = append(errs, invalid("unknown delay %q", s.Delay))
	}

	return errors.Join(errs...)
}
