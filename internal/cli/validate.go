package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pairledger/internal/config"
)

// ValidationResult is the validate command's success payload.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Source string        `json:"source"`
	Config config.Config `json:"config"`
}

func (r ValidationResult) String() string {
	out, err := yaml.Marshal(r.Config)
	if err != nil {
		return fmt.Sprintf("config valid (%s)", r.Source)
	}
	return fmt.Sprintf("config valid (%s)\n%s", r.Source, out)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Long: `Load the configuration the way run does (defaults, then --config, then
PAIRLEDGER_* environment variables), check it against the schema and print
the effective values.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source := "defaults + env"
	if opts.ConfigPath != "" {
		source = opts.ConfigPath + " + env"
	}
	formatter.VerboseLog("Loading config from %s", source)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			_ = formatter.Error("INVALID_CONFIG", fmt.Sprintf("%d problem(s) in config", len(verr.Problems)), verr.Problems)
			if formatter.Format != "json" && !formatter.Verbose {
				for _, p := range verr.Problems {
					fmt.Fprintf(formatter.Writer, "  - %s\n", p)
				}
			}
			return WrapExitError(ExitFailure, "invalid config", err)
		}
		return formatter.Refuse(ExitCommandError, "LOAD_FAILED", err, nil)
	}

	return formatter.Success(ValidationResult{Valid: true, Source: source, Config: cfg})
}
