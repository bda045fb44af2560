package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errReported marks failures the command already printed.
var errReported = errors.New("reported")

type rootFlags struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the sfnsim command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "sfnsim",
		Short: "sfnsim - local AWS Step Functions simulator",
		Long: `sfnsim runs Amazon States Language definitions locally.

Task states reach simulated Lambda functions, S3 buckets, SNS topics, SQS
queues, nested state machines and HTTP endpoints described in sfnsim.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to sfnsim.yaml (default: ./sfnsim.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newRunCmd(flags), newValidateCmd(), newServeCmd(flags))
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}
