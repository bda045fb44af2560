package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BDNK1/sfnsim/cli/internal/security"
	"github.com/BDNK1/sfnsim/runtime"
	"github.com/BDNK1/sfnsim/runtime/states"
	"github.com/Jeffail/gabs/v2"
	"github.com/spf13/cobra"
)

type runFlags struct {
	input        string
	simulateWait bool
	jsonata      bool
	timeout      time.Duration
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Execute a state machine and print its output",
		Long: `Run executes one definition with the resources from the config file and
prints the output JSON. A failed execution prints "Error: <cause>" and exits
non-zero.

Example:
  sfnsim run orders.asl.json --input order.json
  echo '{"n": 1}' | sfnsim run orders.asl.json --input -
  sfnsim run workflow.yaml --config sfnsim.yaml --simulate-wait
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinition(cmd, root, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Execution input: a JSON file, or - for stdin (default {})")
	cmd.Flags().BoolVar(&flags.simulateWait, "simulate-wait", false, "Really sleep in Wait states and retry backoffs")
	cmd.Flags().BoolVar(&flags.jsonata, "jsonata", false, "Use JSONata as the default query language")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Fail the execution with States.Timeout after this long")
	return cmd
}

func runDefinition(cmd *cobra.Command, root *rootFlags, flags *runFlags, path string) error {
	ctx := cmd.Context()

	env, err := setup(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	var app *runtime.App
	defer func() { env.close(context.WithoutCancel(ctx), app) }()

	definitionPath, err := security.ResolvePath(".", path, true)
	if err != nil {
		return err
	}
	def, err := runtime.LoadDefinitionFile(definitionPath)
	if err != nil {
		return err
	}

	input, err := readInput(flags.input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	opts, err := env.options()
	if err != nil {
		return err
	}
	if flags.simulateWait {
		opts.SimulateWait = true
	}
	if flags.jsonata {
		opts.QueryLanguage = runtime.QueryLanguageJSONata
	}

	name := runtime.DefinitionName(definitionPath)
	app, err = env.newApp(ctx, map[string]*runtime.Definition{name: def}, opts)
	if err != nil {
		return err
	}

	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	result := app.Machines[name].Run(ctx, input)
	if result.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", describeFailure(result.Err))
		return errReported
	}

	fmt.Fprintln(cmd.OutOrStdout(), gabs.Wrap(result.Output).StringIndent("", "  "))
	return nil
}

// readInput reads the execution input from a file, or stdin for "-". No
// source means an empty object.
func readInput(source string, stdin io.Reader) (any, error) {
	var data []byte
	var err error
	switch source {
	case "":
		return map[string]any{}, nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}
	return parsed.Data(), nil
}

func describeFailure(err error) string {
	se, ok := states.As(err)
	if !ok {
		return err.Error()
	}
	if se.Cause == "" {
		return se.Name
	}
	return fmt.Sprintf("%s (%s)", se.Cause, se.Name)
}
