package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// TransitionView is one recorded state change.
type TransitionView struct {
	Seq   int64  `json:"seq"`
	At    string `json:"at"`
	From  string `json:"from"`
	To    string `json:"to"`
	Cause string `json:"cause,omitempty"`
}

// TraceResult holds an attempt and its transitions.
type TraceResult struct {
	Attempt     AttemptView      `json:"attempt"`
	Transitions []TransitionView `json:"transitions"`
}

func (r TraceResult) String() string {
	var b strings.Builder
	b.WriteString(r.Attempt.String())
	b.WriteString("\n")
	for _, t := range r.Transitions {
		fmt.Fprintf(&b, "  [%d] %s %s -> %s", t.Seq, t.At, t.From, t.To)
		if t.Cause != "" {
			fmt.Fprintf(&b, ": %s", t.Cause)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <attempt-id>",
		Short: "Show the state transitions of one attempt",
		Long: `Show an attempt from the ledger with every state transition it made,
in sequence order.

Examples:
  tinj trace 01932c4e-7d1a-7c3e-9a4b-2f5e6d7c8b9a
  tinj trace 01932c4e-7d1a-7c3e-9a4b-2f5e6d7c8b9a --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrace(opts *RootOptions, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx := context.Background()

	st, err := openLedger(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.GetAttempt(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, "no attempt "+id, nil)
		return NewExitError(ExitFailure, "no attempt "+id)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	trs, err := st.TransitionsFor(ctx, id)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	result := TraceResult{Attempt: newAttemptView(a), Transitions: make([]TransitionView, 0, len(trs))}
	for _, t := range trs {
		result.Transitions = append(result.Transitions, TransitionView{
			Seq:   t.Seq,
			At:    t.At.UTC().Format(timeLayout),
			From:  t.From,
			To:    t.To,
			Cause: t.Cause,
		})
	}
	return formatter.Success(result)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
