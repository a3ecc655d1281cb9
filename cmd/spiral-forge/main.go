package main

import (
	"fmt"
	"os"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"spiral-forge/internal/config"
	"spiral-forge/internal/logging"
)

var flags *pflag.FlagSet

var (
	cfgPathFlag     string
	stepsFlag       int
	logEveryFlag    int
	samplesFlag     int
	classesFlag     int
	hiddenFlag      int
	descentRateFlag float64
	regularRateFlag float64
	renderOutFlag   string
	listenAddrFlag  string
	logLevelFlag    string
)

func init() {
	resetFlags()
}

// Explicitly define a method to facilitate tests
func resetFlags() {
	flags = &pflag.FlagSet{}

	flags.StringVarP(&cfgPathFlag, "config", "c", "configs/demo.yaml", "Path to YAML config, empty for built-in defaults")
	flags.IntVar(&stepsFlag, "steps", 0, "Number of training steps")
	flags.IntVar(&logEveryFlag, "log-every", 0, "Log every N steps")
	flags.IntVar(&samplesFlag, "samples", 0, "Total number of training points")
	flags.IntVar(&classesFlag, "classes", 0, "Number of spiral arms")
	flags.IntVar(&hiddenFlag, "hidden", 0, "Hidden layer width")
	flags.Float64Var(&descentRateFlag, "descent-rate", 0, "Gradient descent step size")
	flags.Float64Var(&regularRateFlag, "regular-rate", 0, "L2 regularization strength")
	flags.StringVarP(&renderOutFlag, "render-out", "o", "", "Write the decision boundary PNG here after training")
	flags.StringVarP(&listenAddrFlag, "listen", "l", "", "gRPC listen address")
	flags.StringVar(&logLevelFlag, "log-level", "", "DEBUG, INFO, WARN or ERROR")
}

func attachFlags(cmd *cobra.Command, names []string) {
	cmdFlags := cmd.Flags()
	for _, name := range names {
		if flag := flags.Lookup(name); flag != nil {
			cmdFlags.AddFlag(flag)
		} else {
			panic(fmt.Errorf("could not find flag '%s' to attach to command '%s'", name, cmd.Name()))
		}
	}
}

var commonFlags = []string{
	"config", "samples", "classes", "hidden", "descent-rate", "regular-rate", "log-level",
}

// loadConfig reads the config file, applies flag overrides and installs the
// logging configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPathFlag)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(config.Overrides{
		Steps:        stepsFlag,
		LogEvery:     logEveryFlag,
		TotalSamples: samplesFlag,
		NumClasses:   classesFlag,
		HiddenSize:   hiddenFlag,
		DescentRate:  descentRateFlag,
		RegularRate:  regularRateFlag,
		RenderOut:    renderOutFlag,
		ListenAddr:   listenAddrFlag,
		LogLevel:     logLevelFlag,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.SetLogConfig(cfg.LogConfig())
	return cfg, nil
}

func logCPU(log logging.Logger) {
	log.Infof("cpu=%q physical_cores=%d logical_cores=%d avx2=%t",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.Supports(cpuid.AVX2))
}

var mainCmd = &cobra.Command{
	Use:          "spiral-forge",
	Short:        "Train a two-layer classifier on spiral data",
	SilenceUsage: true,
}

func main() {
	mainCmd.AddCommand(trainCmd())
	mainCmd.AddCommand(serveCmd())

	err := mainCmd.Execute()
	_ = logging.GetLogger(logging.ModuleCLI).Sync()
	if err != nil {
		os.Exit(1)
	}
}
