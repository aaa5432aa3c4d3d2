package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/timing/latency"
)

// configEnv names the environment variable holding the default config path.
const configEnv = "MEMSIM_CONFIG"

type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "memsim",
		Short: "memsim simulates a two-level direct-mapped cache hierarchy.",
		Long: `memsim replays load/store traces against L1, an optional L2 and ` +
			`main memory, and reports cycle counts, miss rates and AMAT.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to timing configuration JSON file (default $"+configEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Verbose output")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newSweepCmd(opts),
		newGenerateCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// loadConfig returns the configuration named by --config or $MEMSIM_CONFIG,
// or the defaults when neither is set.
func (o *globalOptions) loadConfig() (*latency.TimingConfig, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	if path == "" {
		return latency.DefaultTimingConfig(), nil
	}

	config, err := latency.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading timing config: %w", err)
	}

	return config, nil
}

// logger returns a stderr logger in verbose mode and nil otherwise.
func (o *globalOptions) logger(w io.Writer) *log.Logger {
	if !o.verbose {
		return nil
	}
	return log.New(w, "memsim: ", 0)
}
