package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tinj/internal/channel"
	"github.com/roach88/tinj/internal/config"
	"github.com/roach88/tinj/internal/engine"
	"github.com/roach88/tinj/internal/gate"
	"github.com/roach88/tinj/internal/gpstime"
	"github.com/roach88/tinj/internal/schedule"
	"github.com/roach88/tinj/internal/store"
	"github.com/roach88/tinj/internal/tracking"
	"github.com/roach88/tinj/internal/transport"
	"github.com/roach88/tinj/internal/watch"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	PIDFile string
	NoWatch bool

	// IDGenerator overrides attempt ids (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the injection node",
		Long: `Start the injection node.

Loads the schedule, opens the ledger (creating it if it doesn't exist) and
runs the state machine until interrupted. The schedule file is watched and
reloaded on change.

Signals:
  SIGHUP   reload the schedule
  SIGUSR1  kill the current injection
  SIGINT, SIGTERM  stop; an injection in flight is aborted

Example:
  tinj run --config /etc/tinj/h1.yaml
  TINJ_DEV_MODE=true tinj run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PIDFile, "pidfile", "", "write the node pid here (default: next to the ledger)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "do not watch the schedule file")

	return cmd
}

func runNode(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cfg.DevMode {
		slog.Warn("dev mode: the mode gate is bypassed, the veto is still checked")
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	slog.Info("opening ledger", "path", cfg.Ledger)
	st, err := store.Open(cfg.Ledger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	channels, closeChannels, err := openChannels(ctx, cfg.Channels)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open channels", err)
	}
	defer closeChannels()

	tracker, err := newTracker(cfg, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure tracking", err)
	}

	abandoned, err := st.AbandonPending(ctx, "node restarted", time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}
	if abandoned > 0 {
		slog.Warn("closed attempts left pending by a previous run", "count", abandoned)
	}

	lastSeq, err := st.MaxSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	var vetoOpts []gate.VetoOption
	if cfg.Channels.Backend == "redis" {
		// Redis keys are provisioned up front; a missing key is a misconfiguration.
		vetoOpts = append(vetoOpts, gate.WithMissingAsLive())
	}

	deps := engine.Deps{
		Veto: gate.NewVetoMonitor(channels, cfg.Channels.Veto, cfg.VetoWindowDuration(), vetoOpts...),
		Mode: gate.NewModeGate(channels, gate.ModeGateConfig{
			LockChannel: cfg.Channels.Lock,
			ModeChannel: cfg.Channels.Mode,
			ModeBitmask: cfg.Channels.ModeBitmask,
			Bypass:      cfg.DevMode,
		}),
		Transport: transport.NewSimulated(time.Now),
		Tracker:   tracker,
		Channels:  channels,
		Ledger:    st,
	}
	machineOpts := []engine.Option{engine.WithClock(engine.NewClockAt(lastSeq))}
	if opts.IDGenerator != nil {
		machineOpts = append(machineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	m := engine.New(deps, engine.ConfigFrom(cfg), machineOpts...)

	loadOpts := schedule.LoadOptions{IFO: cfg.IFO}
	events, err := schedule.LoadFile(cfg.Schedule, loadOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schedule", err)
	}
	if _, err := m.Load(events); err != nil {
		slog.Warn("starting with a conflicting schedule; the next attempt will fail its cadence check", "error", err)
	}

	reload := func() {
		evs, err := schedule.LoadFile(cfg.Schedule, loadOpts)
		if err != nil {
			slog.Error("schedule reload failed, keeping current schedule", "path", cfg.Schedule, "error", err)
			return
		}
		m.RequestReload(evs)
	}

	if !opts.NoWatch {
		w, err := watch.New(cfg.Schedule, watch.DefaultDebounce, func(string) { reload() })
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch schedule", err)
		}
		if err := w.Start(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to watch schedule", err)
		}
		defer w.Stop()
	}

	pidFile := opts.PIDFile
	if pidFile == "" {
		pidFile = defaultPIDFile(cfg)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write pid file", err)
	}
	defer os.Remove(pidFile)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGHUP:
					slog.Info("received SIGHUP, reloading schedule")
					reload()
				case syscall.SIGUSR1:
					slog.Warn("received SIGUSR1, killing current injection")
					m.Kill()
				default:
					slog.Info("received signal, shutting down", "signal", sig)
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("node starting", "ifo", cfg.IFO, "schedule", cfg.Schedule, "events", len(events),
		"channels", cfg.Channels.Backend, "pid", os.Getpid())
	fmt.Fprintf(cmd.OutOrStdout(), "Node started with %d scheduled event(s).\n", len(events))
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("node stopped gracefully")
	return nil
}

// openChannels connects the configured channel backend. The returned func
// releases it.
func openChannels(ctx context.Context, c config.Channels) (channel.ReadWriter, func(), error) {
	switch c.Backend {
	case "redis":
		r, client, err := channel.Dial(ctx, c.RedisAddr, c.Prefix)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("channels on redis", "addr", c.RedisAddr, "prefix", c.Prefix)
		return r, func() {
			if err := client.Close(); err != nil {
				slog.Error("error closing redis client", "error", err)
			}
		}, nil
	default:
		slog.Warn("in-memory channels: lock and mode are unset until written, so only dev mode will inject")
		return channel.NewMemory(), func() {}, nil
	}
}

// newTracker returns the REST tracker when a URL is configured, else the
// ledger-backed local one.
func newTracker(cfg config.Config, st *store.Store) (tracking.Tracker, error) {
	if cfg.Tracking.URL == "" {
		slog.Info("tracking locally in the ledger")
		return tracking.NewLocal(st, time.Now), nil
	}
	slog.Info("tracking via REST", "url", cfg.Tracking.URL)
	return tracking.NewREST(tracking.RESTConfig{
		BaseURL:           cfg.Tracking.URL,
		RequestsPerSecond: cfg.Tracking.RequestsPerSecond,
		Timeout:           gpstime.Seconds(cfg.Tracking.Timeout),
		Tag:               cfg.Tracking.Tag,
	})
}

func defaultPIDFile(cfg config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Ledger), "tinj.pid")
}
