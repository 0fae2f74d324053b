package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tinj/internal/gpstime"
	"github.com/roach88/tinj/internal/schedule"
)

// NextOptions holds flags for the next command.
type NextOptions struct {
	*RootOptions
	At float64 // GPS seconds; zero means now
}

// NextResult is what the node would do at a given time.
type NextResult struct {
	NowGPS   float64    `json:"now_gps"`
	Window   float64    `json:"imminent_window"`
	Imminent *EventView `json:"imminent,omitempty"`
	Next     *EventView `json:"next,omitempty"`
}

func (r NextResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "now: %.3f (window %gs)\n", r.NowGPS, r.Window)
	switch {
	case r.Imminent != nil:
		fmt.Fprintf(&b, "imminent: %s, in %.1fs", r.Imminent, r.Imminent.GPS-r.NowGPS)
	case r.Next != nil:
		fmt.Fprintf(&b, "nothing imminent; next: %s, in %.1fs", r.Next, r.Next.GPS-r.NowGPS)
	default:
		b.WriteString("no future events")
	}
	return b.String()
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the event the node would pick next",
		Long: `Show the imminent event, if any, and the next future event.

Uses the same selection as the running node: the closest future event due
within the imminent window, ties broken by kind then schedule order.

Examples:
  tinj next
  tinj next --at 1400000000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(opts, cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.At, "at", 0, "evaluate at this GPS time instead of now")

	return cmd
}

func runNext(opts *NextOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	events, err := schedule.LoadFile(cfg.Schedule, schedule.LoadOptions{IFO: cfg.IFO})
	if err != nil {
		_ = formatter.Error(ErrCodeSchedule, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load schedule", err)
	}

	nowGPS := opts.At
	if nowGPS == 0 {
		nowGPS = gpstime.Now()
	}
	now := gpstime.FromSeconds(nowGPS)

	result := NextResult{NowGPS: nowGPS, Window: cfg.ImminentWindow}
	future := schedule.SortByDue(schedule.FutureEvents(events, now))
	if len(future) > 0 {
		result.Next = newEventView(future[0])
	}
	if ev, ok := schedule.SelectImminent(future, now, cfg.ImminentWindowDuration()); ok {
		result.Imminent = newEventView(ev)
	}
	return formatter.Success(result)
}
