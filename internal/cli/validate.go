package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/config"
)

// ValidationError is one problem found in a configuration file.
type ValidationError struct {
	Model   string `json:"model,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Models []string          `json:"models,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration file without opening the database",
		Long: `Validate a configuration file: known fields, codec, log level,
indexed field declarations, and every model's CUE schema, which is compiled
but not applied.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, ExitFailure, err)
	}
	cd, err := codec.ByName(cfg.Codec)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, ExitFailure, err)
	}

	result := ValidationResult{Valid: true}
	for _, m := range cfg.Models {
		formatter.VerboseLog("Validating model: %s", m.Name)
		result.Models = append(result.Models, m.Name)
		if _, err := m.Options(cd); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{Model: m.Name, Message: err.Error()})
		}
	}

	if result.Valid {
		if opts.Format == "json" {
			return formatter.Success(result)
		}
		return formatter.Success(fmt.Sprintf("✓ %s is valid (%d models)", path, len(result.Models)))
	}

	err = fmt.Errorf("%d model(s) failed validation", len(result.Errors))
	if outErr := formatter.Error(ErrCodeConfig, err.Error(), result.Errors); outErr != nil {
		return outErr
	}
	if opts.Format != "json" {
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Model, e.Message)
		}
	}
	return WrapExitError(ExitFailure, ErrCodeConfig, err)
}
