package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/gossiplearn/config"
	"github.com/sarchlab/gossiplearn/datarecording"
	"github.com/sarchlab/gossiplearn/simulation"
	"github.com/sarchlab/gossiplearn/topology"
	"github.com/sarchlab/gossiplearn/tracing"
)

var resumeFlags struct {
	rounds int
	save   string
	output string
}

var resumeCmd = &cobra.Command{
	Use:   "resume <checkpoint>",
	Short: "Continue a simulation from a checkpoint",
	Long: `Continue a simulation from a checkpoint written by "run --checkpoint". ` +
		`A dynamic topology is regenerated with the topology settings of the ` +
		`current configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		save := resumeFlags.save
		if save == "" {
			save = args[0]
		}

		report, err := resume(ctx, cfg, args[0], save, logger)
		if report != nil {
			printSummary(cmd.OutOrStdout(), []*simulation.Report{report})
		}

		return err
	},
}

func init() {
	f := resumeCmd.Flags()
	f.IntVarP(&resumeFlags.rounds, "rounds", "r", 10, "additional rounds")
	f.StringVar(&resumeFlags.save, "save", "", "where to save the new checkpoint, the input file if empty")
	f.StringVarP(&resumeFlags.output, "output", "o", "", "record to this SQLite path, without extension")

	rootCmd.AddCommand(resumeCmd)
}

func loadCheckpoint(path string, cfg config.Config) (*simulation.Simulator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := simulation.Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if dyn, ok := s.Network().(*topology.DynamicNetwork); ok {
		gen, err := newGenerator(cfg.Topology, dyn.Size())
		if err != nil {
			return nil, err
		}

		dyn.SetGenerator(gen)
	}

	return s, nil
}

func resume(
	ctx context.Context,
	cfg config.Config,
	from, to string,
	logger *zap.Logger,
) (*simulation.Report, error) {
	s, err := loadCheckpoint(from, cfg)
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("simulation", s.ID()))
	tracing.CollectTrace(s, tracing.NewLogTracer(logger))

	if resumeFlags.output != "" {
		w, err := datarecording.New(resumeFlags.output)
		if err != nil {
			return nil, err
		}
		defer w.Close()

		t, err := tracing.NewDBTracer(w, s.ID(), false)
		if err != nil {
			return nil, err
		}

		tracing.CollectTrace(s, t)
	}

	logger.Info("resuming", zap.Int("tick", s.Tick()),
		zap.Int("rounds", resumeFlags.rounds))

	report, err := s.Start(ctx, resumeFlags.rounds)
	if err != nil {
		return report, err
	}

	if err := saveCheckpoint(s, to); err != nil {
		return report, err
	}

	logger.Info("checkpoint saved", zap.String("file", to))

	return report, nil
}
