package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinicius-lino-figueiredo/rackdb/internal/config"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/scenario"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Name  string `json:"name,omitempty"`
	Racks int    `json:"racks"`
	Steps int    `json:"steps"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Check a scenario file without running it",
		Long: `Check a scenario file without running it.

Racks, field types, references between racks and step operations are
checked. The configuration file, if given, is checked too.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	if _, err := config.Load(ctx, opts.Config); err != nil {
		return f.Error(ExitCommandError, ErrCodeConfig, err)
	}
	sc, err := scenario.Load(ctx, path)
	if err != nil {
		return f.Error(ExitFailure, ErrCodeScenario, err)
	}
	f.VerboseLog("Loaded %s: %d rack(s), %d step(s)", path, len(sc.Racks), len(sc.Steps))

	res := ValidationResult{Valid: true, Name: sc.Name, Racks: len(sc.Racks), Steps: len(sc.Steps)}
	if f.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: res})
	}
	fmt.Fprintf(f.Writer, "✓ Scenario %s valid\n", sc.Name)
	return nil
}
