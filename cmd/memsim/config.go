package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective timing configuration.",
		Long: `config loads --config (or $` + configEnv + `, or the defaults), ` +
			`validates it and prints it as JSON. With --output it writes the ` +
			`file instead, which is a convenient starting point for a new config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(global, out, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the configuration to this file")

	return cmd
}

func runConfig(global *globalOptions, out string, stdout io.Writer) error {
	config, err := global.loadConfig()
	if err != nil {
		return err
	}

	if err := config.Validate(); err != nil {
		return err
	}

	if out != "" {
		if err := config.SaveConfig(out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s (%d address bits)\n", out, config.AddressBits())
		return nil
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", data)

	return err
}
