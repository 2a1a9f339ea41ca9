package cli

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"
)

// ValidationReport summarizes a validated schema.
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Fields     int      `json:"fields"`
	Excluded   int      `json:"excluded"`
	References []string `json:"references,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-file>",
		Short: "Validate a schema file",
		Long: `Validate a schema file without compiling a request against it.

Checks field declarations, identity aliasing and reference configuration.
Accepts CUE (.cue) and YAML (.yaml, .yml) schema files.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	schema, err := LoadSchemaDefinition(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			formatter.Error(loadErr.Code, loadErr.Message, nil)
			if loadErr.Code == ErrCodeInvalidSchema {
				return NewExitError(ExitFailure, loadErr.Message)
			}
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	report := ValidationReport{
		Valid:    true,
		Fields:   len(schema.Fields),
		Excluded: len(schema.Excluded),
	}
	for field, cfg := range schema.Config {
		if cfg.Reference != nil {
			report.References = append(report.References, field)
		}
	}
	sort.Strings(report.References)

	formatter.VerboseLog("Loaded schema from %s", path)

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	return formatter.Success("Schema is valid")
}
