package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tinj/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryResult lists recent attempts.
type HistoryResult struct {
	Attempts []AttemptView `json:"attempts"`
}

func (r HistoryResult) String() string {
	if len(r.Attempts) == 0 {
		return "No attempts recorded."
	}
	lines := make([]string, len(r.Attempts))
	for i, a := range r.Attempts {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent injection attempts",
		Long: `List recent injection attempts from the ledger, latest due time first.

Examples:
  tinj history
  tinj history --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of attempts to show")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	st, err := openLedger(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	attempts, err := st.RecentAttempts(context.Background(), opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	result := HistoryResult{Attempts: make([]AttemptView, 0, len(attempts))}
	for _, a := range attempts {
		result.Attempts = append(result.Attempts, newAttemptView(a))
	}
	return formatter.Success(result)
}

// openLedger opens the configured ledger, which must already exist.
func openLedger(opts *RootOptions, formatter *OutputFormatter) (*store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, err
	}
	if !fileExists(cfg.Ledger) {
		_ = formatter.Error(ErrCodeLedger, "ledger not found: "+cfg.Ledger, nil)
		return nil, NewExitError(ExitCommandError, "ledger not found: "+cfg.Ledger)
	}
	st, err := store.Open(cfg.Ledger)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	return st, nil
}
