package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tinj/internal/channel"
	"github.com/roach88/tinj/internal/config"
	"github.com/roach88/tinj/internal/engine"
	"github.com/roach88/tinj/internal/gate"
	"github.com/roach88/tinj/internal/gpstime"
	"github.com/roach88/tinj/internal/payload"
	"github.com/roach88/tinj/internal/schedule"
	"github.com/roach88/tinj/internal/store"
	"github.com/roach88/tinj/internal/testutil"
)

const (
	defaultPayloadSeconds = 2
	defaultRunMax         = 1000
)

// Harness holds one scenario's machine and the fakes around it.
type Harness struct {
	machine   *engine.Machine
	store     *store.Store
	clock     *testutil.FakeClock
	channels  *channel.Memory
	transport *testutil.FakeTransport
	tracker   *testutil.FakeTracker
	ifo       string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory ledger and fresh fakes, so
// runs are isolated and deterministic. Attempt ids are attempt-1,
// attempt-2, ...; tracking ids are T1, T2, ...
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, st)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, st *store.Store) (*Harness, error) {
	nodeCfg, err := scenarioConfig(scenario)
	if err != nil {
		return nil, err
	}
	events, err := schedule.Load(strings.NewReader(scenario.Schedule), schedule.LoadOptions{IFO: nodeCfg.IFO})
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	h := &Harness{
		store:    st,
		ifo:      nodeCfg.IFO,
		clock:    testutil.NewFakeClockGPS(scenario.StartGPS),
		channels: channel.NewMemory(),
		transport: &testutil.FakeTransport{
			OpenErr:  fault(scenario.Faults.Open),
			SendErr:  fault(scenario.Faults.Send),
			StayOpen: scenario.Faults.StayOpen,
		},
		tracker: &testutil.FakeTracker{
			RegisterErr: fault(scenario.Faults.Register),
			AnnotateErr: fault(scenario.Faults.Annotate),
		},
	}

	names := nodeCfg.Channels
	h.channels.Set(names.Lock, 1)
	h.channels.Set(names.Mode, 1)
	for name, v := range scenario.Channels {
		h.channels.Set(name, v)
	}

	seconds := scenario.PayloadSeconds
	if seconds == 0 {
		seconds = defaultPayloadSeconds
	}
	wf := waveforms{seconds: seconds, missing: scenario.Faults.MissingPayloads}

	deps := engine.Deps{
		Veto: gate.NewVetoMonitor(h.channels, names.Veto, nodeCfg.VetoWindowDuration()),
		Mode: gate.NewModeGate(h.channels, gate.ModeGateConfig{
			LockChannel: names.Lock,
			ModeChannel: names.Mode,
			ModeBitmask: names.ModeBitmask,
			Bypass:      nodeCfg.DevMode,
		}),
		Transport:    h.transport,
		Tracker:      h.tracker,
		Channels:     h.channels,
		Ledger:       st,
		ReadPayload:  wf.read,
		ReadMetadata: func(schedule.Event) ([]byte, error) { return nil, nil },
	}

	h.machine = engine.New(deps, engine.ConfigFrom(nodeCfg),
		engine.WithTimeSource(h.clock),
		engine.WithIDGenerator(engine.NewFixedGenerator()),
		engine.WithDurations(wf.duration),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	// A cadence conflict at load is kept and fails the first attempt, which
	// is what conflict scenarios observe.
	_, _ = h.machine.Load(events)
	return h, nil
}

// scenarioConfig decodes the scenario's config fragment through the node
// config schema.
func scenarioConfig(scenario *Scenario) (config.Config, error) {
	var data []byte
	if scenario.Config.Kind != 0 {
		b, err := yaml.Marshal(&scenario.Config)
		if err != nil {
			return config.Config{}, fmt.Errorf("config: %w", err)
		}
		data = b
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (h *Harness) execute(ctx context.Context, step Step, result *Result) error {
	switch {
	case step.Step > 0:
		for i := 0; i < step.Step; i++ {
			h.step(ctx, result)
		}
	case step.Run != nil:
		return h.run(ctx, *step.Run, result)
	case step.Advance > 0:
		h.clock.Advance(gpstime.Seconds(step.Advance))
	case step.Set != nil:
		for name, v := range step.Set {
			h.channels.Set(name, v)
		}
	case step.Kill:
		h.machine.Kill()
	case step.Reload != nil:
		events, err := schedule.Load(strings.NewReader(*step.Reload), schedule.LoadOptions{IFO: h.ifo})
		if err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		h.machine.RequestReload(events)
	}
	return nil
}

func (h *Harness) run(ctx context.Context, rs RunStep, result *Result) error {
	tick := time.Second
	if rs.Tick > 0 {
		tick = gpstime.Seconds(rs.Tick)
	}
	limit := rs.Max
	if limit <= 0 {
		limit = defaultRunMax
	}

	for i := 0; i < limit; i++ {
		tr := h.step(ctx, result)
		if !tr.Changed() {
			h.clock.Advance(tick)
			continue
		}
		if string(tr.To) == rs.Until {
			return nil
		}
	}
	return fmt.Errorf("run: %s not reached in %d steps (state %s)", rs.Until, limit, h.machine.State())
}

func (h *Harness) step(ctx context.Context, result *Result) engine.Transition {
	tr := h.machine.Step(ctx)
	if tr.Changed() {
		result.AddTransition(TraceEvent{
			Seq:     tr.Seq,
			GPS:     gpstime.ToSeconds(tr.At),
			From:    string(tr.From),
			To:      tr.Target(),
			Attempt: tr.AttemptID,
			Cause:   tr.Cause,
		})
	}
	return tr
}

func (h *Harness) collect(ctx context.Context, result *Result) error {
	result.Final = h.machine.State()

	for _, name := range h.channels.Names() {
		v, _ := h.channels.Get(name)
		result.Channels[name] = v
	}

	for i := range h.tracker.Registrations {
		id := fmt.Sprintf("T%d", i+1)
		for _, text := range h.tracker.AnnotationsFor(id) {
			result.Annotations = append(result.Annotations, Annotation{TrackingID: id, Text: text})
		}
	}

	attempts, err := h.store.RecentAttempts(ctx, 100)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	result.Attempts = attempts
	return nil
}

func fault(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// waveforms stands in for payload files: every path is a flat waveform of
// a fixed length, except the missing ones.
type waveforms struct {
	seconds float64
	missing []string
}

func (w waveforms) read(path string, sampleRate int) (*payload.Waveform, error) {
	if slices.Contains(w.missing, path) {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	n := int(w.seconds * float64(sampleRate))
	return &payload.Waveform{Path: path, Samples: make([]float64, n), SampleRate: sampleRate}, nil
}

func (w waveforms) duration(ev schedule.Event) (time.Duration, bool) {
	if slices.Contains(w.missing, ev.PayloadPath) {
		return 0, false
	}
	return gpstime.Seconds(w.seconds), true
}
