package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tinj/internal/config"
	"github.com/roach88/tinj/internal/payload"
	"github.com/roach88/tinj/internal/schedule"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	IFOs []string
}

// IFOReport is the validation of the schedule as seen by one IFO.
type IFOReport struct {
	IFO      string   `json:"ifo,omitempty"`
	Code     string   `json:"code,omitempty"` // ErrCode* of the first error
	Events   int      `json:"events"`
	Pairs    int      `json:"pairs"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Schedule string      `json:"schedule"`
	Valid    bool        `json:"valid"`
	Reports  []IFOReport `json:"reports"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	for _, rep := range r.Reports {
		name := rep.IFO
		if name == "" {
			name = "(no ifo)"
		}
		fmt.Fprintf(&b, "%s: %d event(s), %d pair(s) checked\n", name, rep.Events, rep.Pairs)
		for _, e := range rep.Errors {
			fmt.Fprintf(&b, "  ERROR   %s\n", e)
		}
		for _, w := range rep.Warnings {
			fmt.Fprintf(&b, "  WARNING %s\n", w)
		}
	}
	if r.Valid {
		fmt.Fprintf(&b, "✓ %s is valid", r.Schedule)
	} else {
		fmt.Fprintf(&b, "✗ %s is invalid", r.Schedule)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [schedule]",
		Short: "Check a schedule before deploying it",
		Long: `Check a schedule file without running it.

The schedule is parsed once per IFO (resolving {ifo} in payload paths),
every payload is read to find its length, and consecutive events are
checked against the minimum cadence: start-to-start gaps and overlapping
injections are errors, short end-to-start gaps are warnings.

The schedule defaults to the one in the node config.

Exit codes:
  0 - Schedule is valid (warnings allowed)
  1 - Parse errors, unreadable payloads or conflicts
  2 - Command error (bad config)

Examples:
  tinj validate schedule.txt --ifo H1 --ifo L1
  tinj validate --config /etc/tinj/h1.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(opts, path, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.IFOs, "ifo", nil, "IFO to validate for (repeatable; default from config)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	if path == "" {
		path = cfg.Schedule
	}

	ifos := opts.IFOs
	if len(ifos) == 0 {
		ifos = cfg.ValidationIFOs()
	}
	if len(ifos) == 0 {
		ifos = []string{""}
	}

	result := ValidationResult{Schedule: path, Valid: true}
	for _, ifo := range ifos {
		formatter.VerboseLog("Validating %s for %q", path, ifo)
		rep := validateFor(cfg, path, ifo)
		if len(rep.Errors) > 0 {
			result.Valid = false
		}
		result.Reports = append(result.Reports, rep)
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("schedule %s is invalid", path))
	}
	return nil
}

// validateFor parses, reads payloads and checks cadence for one IFO.
func validateFor(cfg config.Config, path, ifo string) IFOReport {
	rep := IFOReport{IFO: ifo}

	events, err := schedule.LoadFile(path, schedule.LoadOptions{IFO: ifo})
	if err != nil {
		rep.Code = ErrCodeSchedule
		rep.Errors = append(rep.Errors, err.Error())
		return rep
	}
	rep.Events = len(events)

	durations := payload.Durations(cfg.SampleRate)
	for _, ev := range events {
		if _, ok := durations(ev); !ok {
			rep.Code = ErrCodeSchedule
			rep.Errors = append(rep.Errors, fmt.Sprintf("line %d: payload %s is unreadable", ev.Line, ev.PayloadPath))
		}
	}

	report, err := schedule.Validate(events, cfg.MinCadenceDuration(), schedule.WithDurations(durations))
	rep.Pairs = report.Checked
	for _, w := range report.Warnings {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s ends %gs before %s (min %gs)",
			w.First, w.Gap.Seconds(), w.Second, cfg.MinCadence))
	}
	if err != nil {
		if rep.Code == "" {
			rep.Code = ErrCodeSchedule
			if schedule.IsConflict(err) {
				rep.Code = ErrCodeConflict
			}
		}
		rep.Errors = append(rep.Errors, err.Error())
	}
	return rep
}
