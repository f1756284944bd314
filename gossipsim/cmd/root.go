// Package cmd provides the command-line interface of gossipsim.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sarchlab/gossiplearn/config"
)

var (
	configFile  string
	envFile     string
	logLevel    string
	development bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gossipsim",
	Short: "gossipsim simulates gossip learning over a population of nodes.",
	Long: `gossipsim simulates decentralized learning in which every node trains a ` +
		`local model and improves it by exchanging models with its peers. ` +
		`Experiments are described by a YAML file, GOSSIP_* environment ` +
		`variables, and flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "experiment YAML file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file with GOSSIP_* variables")
	flags.StringVar(&logLevel, "log-level", "", "log level, overriding the configuration")
	flags.BoolVar(&development, "dev", false, "human-readable development logs")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor("Error:"), err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadConfig reads the configuration file and the environment. Flags are
// applied by the caller.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, err
	}

	if err := cfg.ApplyEnv(envFile); err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = logger.Sync() })

	return logger, nil
}
