package cmd

import (
	"fmt"

	"github.com/BDNK1/sfnsim/cli/internal/graph"
	"github.com/BDNK1/sfnsim/cli/internal/security"
	"github.com/BDNK1/sfnsim/runtime"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>...",
		Short: "Check definitions for structural problems",
		Long: `Validate parses each definition and reports missing states, dangling
transitions, malformed Retry and Catch blocks and unknown state types. It exits
non-zero when any definition has a problem. Valid definitions are also checked
for unreachable states and loops without an exit, which are printed as
warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false

			for _, arg := range args {
				def, problems, err := validateFile(arg)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", arg, err)
					failed = true
					continue
				}
				if len(problems) > 0 {
					failed = true
					fmt.Fprintf(out, "%s: %d problem(s)\n", arg, len(problems))
					for _, problem := range problems {
						fmt.Fprintf(out, "  - %s\n", problem)
					}
					continue
				}

				fmt.Fprintf(out, "%s: valid\n", arg)
				for _, warning := range graph.Build(def).Warnings() {
					fmt.Fprintf(out, "  ! %s\n", warning)
				}
			}

			if failed {
				return errReported
			}
			return nil
		},
	}
}

func validateFile(path string) (*runtime.Definition, []string, error) {
	resolved, err := security.ResolvePath(".", path, true)
	if err != nil {
		return nil, nil, err
	}
	def, err := runtime.LoadDefinitionFile(resolved)
	if err != nil {
		return nil, nil, err
	}
	return def, runtime.Validate(def), nil
}
