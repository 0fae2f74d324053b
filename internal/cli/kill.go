package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// KillOptions holds flags for the kill command.
type KillOptions struct {
	*RootOptions
	PIDFile string
}

// NewKillCommand creates the kill command.
func NewKillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KillOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Kill the injection in progress on a running node",
		Long: `Ask a running node to kill whatever it is doing.

Sends SIGUSR1 to the pid recorded by 'tinj run'. The node aborts the
stream, records the killed outcome and returns to waiting. It keeps
running; use SIGTERM to stop it.

Examples:
  tinj kill --config /etc/tinj/h1.yaml
  tinj kill --pidfile /run/tinj.pid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKill(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PIDFile, "pidfile", "", "pid file written by run (default: next to the ledger)")

	return cmd
}

func runKill(opts *KillOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	path := opts.PIDFile
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return err
		}
		path = defaultPIDFile(cfg)
	}

	pid, err := readPID(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "no running node", err)
	}
	formatter.VerboseLog("Signalling pid %d from %s", pid, path)

	if err := syscall.Kill(pid, syscall.SIGUSR1); err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), map[string]int{"pid": pid})
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to signal pid %d", pid), err)
	}
	return formatter.Success(map[string]any{"killed": true, "pid": pid})
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s: invalid pid %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}
