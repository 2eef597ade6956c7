package cmd

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/userop-simulator/internal/version"
	"github.com/ethpandaops/userop-simulator/pkg/config"
	"github.com/ethpandaops/userop-simulator/pkg/entrypoint"
	"github.com/ethpandaops/userop-simulator/pkg/scenario"
	"github.com/ethpandaops/userop-simulator/pkg/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	log          = logrus.New()
	configFile   string
	scenarioFile string
	printMetrics bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "userop-simulator",
	Short: "Simulates and estimates ERC-4337 user operations.",
	Long:  `Simulates validation and execution of ERC-4337 user operations against a scenario world and estimates their gas limits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&scenarioFile, "scenario", "scenario.yaml", "scenario file")
	rootCmd.PersistentFlags().BoolVar(&printMetrics, "print-metrics", false, "write collected metrics to stderr when done")
}

func initCommon() (*config.Config, error) {
	cfg, err := loadConfigFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LoggingLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid logging level, using info")

		level = logrus.InfoLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	log.WithField("version", version.Full()).Debug("Starting userop-simulator")

	return cfg, nil
}

func loadConfigFromFile(file string) (*config.Config, error) {
	cfg := &config.Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	if file != "" {
		yamlFile, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		type plain config.Config

		if err := yaml.Unmarshal(yamlFile, (*plain)(cfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// session is everything a subcommand needs to serve a scenario.
type session struct {
	scenario  *scenario.Scenario
	world     *scenario.World
	simulator *simulation.Simulator
}

func newSession() (*session, error) {
	cfg, err := initCommon()
	if err != nil {
		return nil, err
	}

	sc, err := scenario.Load(scenarioFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}

	world, err := sc.Build(log.WithField("component", "scenario"), entrypoint.Config{
		Address: cfg.Chain.EntryPointAddress(),
		ChainID: cfg.Chain.ChainIDBig(),
		BaseFee: cfg.Chain.BaseFeeUint(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario world: %w", err)
	}

	sim, err := simulation.New(log, &cfg.Simulator, world.VM, world.EntryPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	simCfg := sim.Config()

	log.WithFields(logrus.Fields{
		"gas_limit":             simCfg.GasLimit,
		"tolerance_delta":       simCfg.ToleranceDelta,
		"gas_allowance":         simCfg.GasAllowance,
		"side_effect_gas_limit": simCfg.SideEffectGasLimit,
	}).Debug("Simulator ready")

	return &session{scenario: sc, world: world, simulator: sim}, nil
}

func writeMetrics() error {
	if !printMetrics {
		return nil
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(os.Stderr, expfmt.NewFormat(expfmt.TypeTextPlain))

	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}

	return nil
}
