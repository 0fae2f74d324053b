package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/roach88/tinj/internal/channel"
	"github.com/roach88/tinj/internal/gate"
	"github.com/roach88/tinj/internal/gpstime"
	"github.com/roach88/tinj/internal/payload"
	"github.com/roach88/tinj/internal/schedule"
	"github.com/roach88/tinj/internal/store"
	"github.com/roach88/tinj/internal/tracking"
	"github.com/roach88/tinj/internal/transport"
)

const instrumentationName = "github.com/roach88/tinj/internal/engine"

var errEngineStopped = fmt.Errorf("%w: engine stopped", ErrKilled)

// VetoChecker reports whether an external alert is live at now.
type VetoChecker interface {
	Check(ctx context.Context, now time.Time) gate.VetoStatus
}

// ModeEvaluator decides whether the process permits an injection that
// requires mode.
type ModeEvaluator interface {
	Evaluate(ctx context.Context, required schedule.Mode) gate.Decision
}

// Recorder is the ledger the machine writes attempts and transitions to.
// *store.Store satisfies it.
type Recorder interface {
	BeginAttempt(ctx context.Context, a store.Attempt) error
	SetTrackingID(ctx context.Context, attemptID, trackingID string) error
	FinishAttempt(ctx context.Context, attemptID, outcome, cause string, at time.Time) error
	WriteTransition(ctx context.Context, t store.Transition) error
}

// PayloadReader loads a waveform.
type PayloadReader func(path string, sampleRate int) (*payload.Waveform, error)

// MetadataReader loads an event's metadata, nil when it has none.
type MetadataReader func(ev schedule.Event) ([]byte, error)

// Deps are the machine's collaborators.
type Deps struct {
	Veto      VetoChecker
	Mode      ModeEvaluator
	Transport transport.Transport
	Tracker   tracking.Tracker

	// Channels receives the legacy outcome records; nil disables them.
	Channels channel.Writer
	// Ledger records attempts and transitions; nil disables it.
	Ledger Recorder

	// ReadPayload defaults to payload.Read.
	ReadPayload PayloadReader
	// ReadMetadata defaults to payload.ReadMetadata.
	ReadMetadata MetadataReader
}

// OutcomeChannels names the legacy outcome records. An empty name is
// skipped.
type OutcomeChannels struct {
	Type    string
	Start   string
	End     string
	Outcome string
}

// DefaultOutcomeChannels returns the record names under a front-end model.
func DefaultOutcomeChannels(model string) OutcomeChannels {
	return OutcomeChannels{
		Type:    model + "_TINJ_TYPE",
		Start:   model + "_TINJ_START",
		End:     model + "_TINJ_ENDED",
		Outcome: model + "_TINJ_OUTCOME",
	}
}

// Config holds the machine's timing and naming parameters. The veto
// window belongs to the VetoChecker.
type Config struct {
	ImminentWindow time.Duration
	ArmingLead     time.Duration
	MinGap         time.Duration
	PollInterval   time.Duration
	CloseGrace     time.Duration
	// AnnotateTimeout bounds each tracking annotation, which runs after
	// the attempt context may already be cancelled.
	AnnotateTimeout time.Duration

	SampleRate        int
	ExcitationChannel string
	Instruments       []string
	Pipeline          string
	Outcomes          OutcomeChannels
}

// DefaultAnnotateTimeout is used when Config.AnnotateTimeout is not set.
const DefaultAnnotateTimeout = 10 * time.Second

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ImminentWindow:    300 * time.Second,
		ArmingLead:        20 * time.Second,
		MinGap:            300 * time.Second,
		PollInterval:      time.Second,
		CloseGrace:        10 * time.Second,
		AnnotateTimeout:   DefaultAnnotateTimeout,
		SampleRate:        16384,
		ExcitationChannel: "CAL-PINJX_TRANSIENT_EXC",
		Pipeline:          tracking.DefaultPipeline,
		Outcomes:          DefaultOutcomeChannels("CAL-PINJX"),
	}
}

// Option configures a Machine.
type Option func(*Machine)

// WithTimeSource replaces the wall clock.
func WithTimeSource(ts TimeSource) Option {
	return func(m *Machine) { m.now = ts }
}

// WithIDGenerator replaces the UUIDv7 attempt id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Machine) { m.ids = g }
}

// WithClock sets the transition sequence clock, typically resumed from
// the ledger's highest seq.
func WithClock(c *Clock) Option {
	return func(m *Machine) { m.seq = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithDurations sets how payload durations are computed for the
// end-to-start cadence check. Defaults to reading each payload.
func WithDurations(fn schedule.DurationFunc) Option {
	return func(m *Machine) { m.durations = fn }
}

// Machine is the injection execution state machine.
//
// Step and Run must be called from one goroutine. Kill, RequestReload,
// State and Snapshot are safe from any goroutine.
type Machine struct {
	deps      Deps
	cfg       Config
	now       TimeSource
	ids       IDGenerator
	seq       *Clock
	logger    *slog.Logger
	durations schedule.DurationFunc
	commands  *commandQueue
	gateLog   *rate.Limiter
	started   atomic.Bool

	tracer   trace.Tracer
	outcomes metric.Int64Counter

	// Owned by the stepping goroutine.
	events     []schedule.Event
	epoch      int64
	validated  bool
	attempted  map[int]bool
	attemptCtx context.Context
	span       trace.Span

	mu            sync.Mutex // guards the fields below for readers
	state         State
	ectx          ExecutionContext
	cancelAttempt context.CancelCauseFunc
}

// New creates a machine in WAIT with an empty schedule.
func New(deps Deps, cfg Config, opts ...Option) *Machine {
	m := &Machine{
		deps:      deps,
		cfg:       cfg,
		now:       wallClock{},
		ids:       UUIDv7Generator{},
		seq:       NewClock(),
		logger:    slog.Default().With("component", "engine"),
		commands:  newCommandQueue(),
		gateLog:   rate.NewLimiter(rate.Every(time.Minute), 1),
		tracer:    otel.Tracer(instrumentationName),
		attempted: make(map[int]bool),
		state:     StateWait,
		ectx:      ExecutionContext{Status: StatusIdle},
	}
	if m.deps.ReadPayload == nil {
		m.deps.ReadPayload = payload.Read
	}
	if m.deps.ReadMetadata == nil {
		m.deps.ReadMetadata = payload.ReadMetadata
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.durations == nil {
		m.durations = payload.Durations(cfg.SampleRate)
	}
	if m.cfg.AnnotateTimeout <= 0 {
		m.cfg.AnnotateTimeout = DefaultAnnotateTimeout
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"tinj.attempt.outcomes",
		metric.WithDescription("Injection attempts by terminal outcome"),
	)
	if err != nil {
		m.logger.Warn("outcome counter unavailable", "error", err)
	}
	m.outcomes = counter
	return m
}

// Load replaces the schedule and starts a new epoch: the cadence check
// runs again before the next attempt and every event may be attempted
// once more. The returned error is the load-time cadence result; the
// schedule is kept either way and a conflict fails the next attempt.
//
// Load must not be called while Run is active; use RequestReload.
func (m *Machine) Load(events []schedule.Event) (schedule.Report, error) {
	m.epoch++
	m.events = append([]schedule.Event(nil), events...)
	m.attempted = make(map[int]bool)
	m.validated = false

	future := schedule.FutureEvents(m.events, m.now.Now())
	rep, err := schedule.Validate(future, m.cfg.MinGap, schedule.WithDurations(m.durations))
	m.logWarnings(rep)
	if err != nil {
		m.logger.Error("schedule failed cadence check", "epoch", m.epoch, "error", err)
	}
	m.logger.Info("schedule loaded", "epoch", m.epoch, "events", len(m.events), "future", len(future))
	return rep, err
}

// RequestReload queues a schedule swap. It is applied at the start of the
// next step; an attempt in flight keeps its own copy of its event.
func (m *Machine) RequestReload(events []schedule.Event) {
	evs := append([]schedule.Event(nil), events...)
	if !m.commands.Enqueue(Command{Type: CommandReload, Events: evs}) {
		m.logger.Warn("reload ignored: machine stopped")
	}
}

// Kill preempts whatever the machine is doing. A blocking send in ACTIVE
// is cancelled and the stream aborted.
func (m *Machine) Kill() {
	if !m.commands.Enqueue(Command{Type: CommandKill}) {
		m.logger.Warn("kill ignored: machine stopped")
	}
	m.mu.Lock()
	cancel := m.cancelAttempt
	m.mu.Unlock()
	if cancel != nil {
		cancel(ErrKilled)
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the execution context.
func (m *Machine) Snapshot() ExecutionContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.ectx
	if c.Event != nil {
		ev := *c.Event
		c.Event = &ev
	}
	return c
}

// Epoch returns the current load epoch.
func (m *Machine) Epoch() int64 {
	return m.epoch
}

// Events returns the loaded schedule.
func (m *Machine) Events() []schedule.Event {
	return append([]schedule.Event(nil), m.events...)
}

// Step performs exactly one state action and returns the transition.
// Operator commands queued since the last step are applied first; a kill
// preempts the state action unless the attempt already reached a terminal
// state.
func (m *Machine) Step(ctx context.Context) Transition {
	if m.drainCommands() && !m.state.Terminal() {
		return m.enterKill(ErrKilled)
	}

	switch m.state {
	case StateWait:
		return m.stepWait(ctx)
	case StateAlertActive:
		return m.stepAlert(ctx)
	case StateCadenceCheck:
		return m.stepCadence()
	case StateRegister:
		return m.stepRegister()
	case StateLoadPayload:
		return m.stepLoadPayload()
	case StateArm:
		return m.stepArm()
	case StatePrewait:
		return m.stepPrewait()
	case StateActive:
		return m.stepActive()
	case StateSuccess:
		return m.stepSuccess()
	case StateFailure:
		return m.stepFailure(ctx)
	case StateKill:
		return m.stepKill()
	}
	m.logger.Error("unknown state, returning to WAIT", "state", m.state)
	return m.enter(StateWait, "", "unknown state")
}

// Run steps the machine until ctx is done. Steps that change state are
// followed immediately by the next step; a step that stays put waits for
// the poll interval or an operator command.
//
// Run may be called once per Machine; it closes the command queue on exit
// and a second call returns ErrAlreadyRun.
func (m *Machine) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	m.logger.Info("engine starting", "epoch", m.epoch, "events", len(m.events))
	defer m.commands.Close()

	for {
		if err := ctx.Err(); err != nil {
			m.shutdown()
			m.logger.Info("engine stopping: context cancelled")
			return err
		}

		if tr := m.Step(ctx); tr.Changed() {
			continue
		}

		timer := time.NewTimer(m.pollDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-m.commands.Wait():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pollDelay shortens the poll in PREWAIT so ACTIVE starts at the lead
// boundary rather than up to one interval late.
func (m *Machine) pollDelay() time.Duration {
	d := m.cfg.PollInterval
	if d <= 0 {
		d = time.Second
	}
	if m.state == StatePrewait && m.ectx.Event != nil {
		until := m.ectx.Event.Due.Add(-m.cfg.ArmingLead).Sub(m.now.Now())
		if until < d {
			d = max(until, time.Millisecond)
		}
	}
	return d
}

func (m *Machine) drainCommands() (killed bool) {
	for {
		c, ok := m.commands.TryDequeue()
		if !ok {
			return killed
		}
		switch c.Type {
		case CommandKill:
			m.logger.Warn("kill requested", "state", m.state)
			killed = true
		case CommandReload:
			m.logger.Info("applying schedule reload", "events", len(c.Events))
			_, _ = m.Load(c.Events)
		}
	}
}

// shutdown finishes or aborts an attempt left in flight by Run exiting.
func (m *Machine) shutdown() {
	switch {
	case m.state == StateSuccess:
		m.stepSuccess()
	case m.state == StateFailure:
		m.stepFailure(context.Background())
	case m.state == StateKill:
		m.stepKill()
	case !m.ectx.Idle() || m.ectx.HasStream():
		m.logger.Warn("engine stopping mid-attempt, aborting", "state", m.state, "attempt", m.ectx.AttemptID)
		m.enterKill(errEngineStopped)
		m.stepKill()
	}
}

func (m *Machine) stepWait(ctx context.Context) Transition {
	now := m.now.Now()
	if v := m.deps.Veto.Check(ctx, now); v.Live {
		return m.enter(StateAlertActive, "", vetoCause(v))
	}

	ev, ok := schedule.SelectImminent(m.pending(now), now, m.cfg.ImminentWindow)
	if !ok {
		return m.stay("")
	}

	d := m.deps.Mode.Evaluate(ctx, ev.Mode)
	if !d.Permitted {
		switch d.Reason {
		case gate.ReasonUnlocked:
			m.writeChannel(m.cfg.Outcomes.Outcome, OutcomeUnlocked)
		case gate.ReasonWrongMode:
			m.writeChannel(m.cfg.Outcomes.Outcome, OutcomeWrongMode)
		}
		if m.gateLog.Allow() {
			m.logger.Info("skipping imminent event, mode gate closed",
				"event", ev, "reason", d.Reason, "locked", d.Locked, "mode", d.Mode, "error", d.Err)
		}
		return m.stay(string(d.Reason))
	}

	m.beginAttempt(ctx, ev, now)
	m.writeChannel(m.cfg.Outcomes.Start, gpstime.ToSeconds(now))
	m.writeChannel(m.cfg.Outcomes.Outcome, OutcomePending)
	return m.enter(StateCadenceCheck, "", "imminent "+ev.String())
}

func (m *Machine) stepAlert(ctx context.Context) Transition {
	if v := m.deps.Veto.Check(ctx, m.now.Now()); v.Live {
		return m.stay(vetoCause(v))
	}
	return m.enter(StateWait, "", "external alert cleared")
}

func (m *Machine) stepCadence() Transition {
	if m.validated {
		return m.enter(StateRegister, "", "cadence checked this epoch")
	}
	future := schedule.FutureEvents(m.events, m.now.Now())
	rep, err := schedule.Validate(future, m.cfg.MinGap, schedule.WithDurations(m.durations))
	if err != nil {
		return m.fail(err)
	}
	m.logWarnings(rep)
	m.validated = true
	return m.enter(StateRegister, "", fmt.Sprintf("cadence ok (%d pairs)", rep.Checked))
}

func (m *Machine) stepRegister() Transition {
	if tr, vetoed := m.checkVeto(); vetoed {
		return tr
	}
	ev := *m.ectx.Event

	meta, err := m.deps.ReadMetadata(ev)
	if err != nil {
		m.logger.Warn("metadata unreadable, registering without it", "event", ev, "error", err)
		meta = nil
	}
	m.writeChannel(m.cfg.Outcomes.Type, float64(ev.Kind.TypeCode()))

	id, err := m.deps.Tracker.Register(m.attemptCtx, tracking.Registration{
		Group:       ev.Kind.Group(),
		Pipeline:    m.cfg.Pipeline,
		Instruments: m.cfg.Instruments,
		Filename:    ev.MetadataPath,
		Metadata:    meta,
	})
	if err != nil {
		return m.fail(fmt.Errorf("register %s: %w", ev, err))
	}

	m.mu.Lock()
	m.ectx.TrackingID = id
	m.mu.Unlock()
	if m.deps.Ledger != nil {
		if err := m.deps.Ledger.SetTrackingID(context.Background(), m.ectx.AttemptID, id); err != nil {
			m.logger.Warn("ledger write failed", "op", "set tracking id", "error", err)
		}
	}
	return m.enter(StateLoadPayload, "", "tracking id "+id)
}

func (m *Machine) stepLoadPayload() Transition {
	if tr, vetoed := m.checkVeto(); vetoed {
		return tr
	}
	ev := m.ectx.Event

	w, err := m.deps.ReadPayload(ev.PayloadPath, m.cfg.SampleRate)
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	m.ectx.Payload = w
	m.mu.Unlock()
	return m.enter(StateArm, "", fmt.Sprintf("%d samples, %s", len(w.Samples), w.Duration()))
}

func (m *Machine) stepArm() Transition {
	if tr, vetoed := m.checkVeto(); vetoed {
		return tr
	}
	ev := m.ectx.Event
	if !m.now.Now().Before(ev.Due) {
		return m.fail(ErrMissedWindow)
	}

	st, err := m.deps.Transport.Open(m.attemptCtx, m.cfg.ExcitationChannel, m.cfg.SampleRate, ev.Due)
	if err != nil {
		return m.fail(fmt.Errorf("open stream: %w", err))
	}

	m.mu.Lock()
	m.ectx.Stream = st
	m.mu.Unlock()
	return m.enter(StatePrewait, "", "stream open on "+m.cfg.ExcitationChannel)
}

func (m *Machine) stepPrewait() Transition {
	if tr, vetoed := m.checkVeto(); vetoed {
		return tr
	}
	ev := m.ectx.Event
	now := m.now.Now()
	if !now.Before(ev.Due) {
		return m.fail(ErrMissedWindow)
	}
	if d := m.deps.Mode.Evaluate(m.attemptCtx, ev.Mode); !d.Permitted {
		return m.fail(fmt.Errorf("%w: %s", ErrModeLost, d.Reason))
	}

	remaining := ev.Due.Sub(now)
	if remaining < m.cfg.ArmingLead {
		return m.enter(StateActive, "", fmt.Sprintf("%.3fs to due", remaining.Seconds()))
	}
	return m.stay("")
}

func (m *Machine) stepActive() Transition {
	ev := m.ectx.Event
	st := m.ectx.Stream
	deadline := ev.Due.Add(m.ectx.Payload.Duration() + m.cfg.CloseGrace)

	if !m.ectx.sent {
		if tr, vetoed := m.checkVeto(); vetoed {
			return tr
		}
		sctx, cancel := context.WithTimeout(m.attemptCtx, deadline.Sub(m.now.Now()))
		err := st.Send(sctx, transport.Payload{Samples: m.ectx.Payload.Samples, Scale: ev.Scale}, true)
		cancel()
		if err != nil {
			return m.fail(fmt.Errorf("send: %w", err))
		}
		m.mu.Lock()
		m.ectx.sent = true
		m.mu.Unlock()
	}

	if !st.IsOpen() {
		return m.enter(StateSuccess, "", "stream closed")
	}
	if !m.now.Now().Before(deadline) {
		return m.fail(ErrStreamNotClosed)
	}
	return m.stay("waiting for stream to close")
}

func (m *Machine) stepSuccess() Transition {
	ev := m.ectx.Event
	m.annotate("Injection was successful.")
	if ev != nil {
		m.annotate(ev.ScheduleLine())
	}
	m.writeChannel(m.cfg.Outcomes.Outcome, OutcomeSuccess)
	m.writeChannel(m.cfg.Outcomes.End, gpstime.ToSeconds(m.now.Now()))

	m.mu.Lock()
	m.ectx.Status = StatusSucceeded
	m.mu.Unlock()
	m.finish(string(StateSuccess), "", nil)
	return m.enter(StateWait, "", "injection complete")
}

func (m *Machine) stepFailure(ctx context.Context) Transition {
	f := m.ectx.Failure
	if f == nil {
		f = &Failure{Kind: "", State: StateFailure}
	}
	path := Recovery(f.Kind)
	if path.Annotate {
		m.annotate(fmt.Sprintf("Injection failed (%s): %v", f.Kind, f.Cause))
	}
	m.writeChannel(m.cfg.Outcomes.Outcome, float64(path.Outcome))
	m.writeChannel(m.cfg.Outcomes.End, gpstime.ToSeconds(m.now.Now()))
	m.finish(fmt.Sprintf("%s(%s)", StateFailure, f.Kind), string(f.Kind), f)

	next := path.Next
	if v := m.deps.Veto.Check(ctx, m.now.Now()); v.Live {
		return m.enter(StateAlertActive, "", vetoCause(v))
	}
	return m.enter(next, "", "recovered from "+string(f.Kind))
}

func (m *Machine) stepKill() Transition {
	m.writeChannel(m.cfg.Outcomes.Outcome, OutcomeKilled)
	if !m.ectx.Idle() {
		f := m.ectx.Failure
		if f == nil {
			f = &Failure{Kind: FailureKillRequested, State: StateKill, Cause: ErrKilled}
		}
		m.annotate(fmt.Sprintf("Injection killed: %v", f.Cause))
		m.finish(string(StateKill), string(FailureKillRequested), f)
	}
	return m.enter(Recovery(FailureKillRequested).Next, "", "kill complete")
}

// checkVeto fails the attempt with VetoAbort if the veto is live.
func (m *Machine) checkVeto() (Transition, bool) {
	v := m.deps.Veto.Check(m.attemptCtx, m.now.Now())
	if !v.Live {
		return Transition{}, false
	}
	cause := ErrVetoLive
	if v.Err != nil {
		cause = fmt.Errorf("%w (veto channel unreadable: %v)", ErrVetoLive, v.Err)
	}
	return m.fail(cause), true
}

// fail moves the attempt to FAILURE. An error raised after the attempt
// context was cancelled, by a kill or by the run context ending, becomes a
// KILL instead: the call failed because the node stopped it.
func (m *Machine) fail(err error) Transition {
	if m.attemptCtx != nil && m.attemptCtx.Err() != nil {
		if errors.Is(context.Cause(m.attemptCtx), ErrKilled) {
			return m.enterKill(ErrKilled)
		}
		return m.enterKill(errEngineStopped)
	}
	kind := Classify(m.state, err)
	f := &Failure{Kind: kind, State: m.state, Cause: err}

	m.mu.Lock()
	m.ectx.Failure = f
	m.ectx.Status = StatusFailed
	m.mu.Unlock()

	m.logger.Error("injection failed", "attempt", m.ectx.AttemptID, "event", m.ectx.Event,
		"kind", kind, "state", f.State, "error", err)
	return m.enter(StateFailure, kind, err.Error())
}

func (m *Machine) enterKill(cause error) Transition {
	m.mu.Lock()
	if !m.ectx.Idle() {
		m.ectx.Failure = &Failure{Kind: FailureKillRequested, State: m.state, Cause: cause}
		m.ectx.Status = StatusKilled
	}
	m.mu.Unlock()
	return m.enter(StateKill, FailureKillRequested, cause.Error())
}

// enter moves to a new state and runs its entry action. Stream release is
// the entry action of every state an attempt can end in, so no transition
// out of an attempt leaves the stream open.
func (m *Machine) enter(to State, kind FailureKind, cause string) Transition {
	tr := Transition{
		Seq:       m.seq.Next(),
		At:        m.now.Now(),
		From:      m.state,
		To:        to,
		Failure:   kind,
		AttemptID: m.ectx.AttemptID,
		Cause:     cause,
	}

	m.mu.Lock()
	m.state = to
	var releaseErr error
	switch to {
	case StateSuccess:
		releaseErr = m.ectx.release(false)
	case StateFailure, StateKill:
		releaseErr = m.ectx.release(true)
	case StateWait, StateAlertActive:
		releaseErr = m.ectx.release(true)
		if m.cancelAttempt != nil {
			m.cancelAttempt(nil)
			m.cancelAttempt = nil
		}
		m.ectx = ExecutionContext{Status: StatusIdle}
	}
	m.mu.Unlock()

	if to == StateWait || to == StateAlertActive {
		m.attemptCtx = nil
		m.span = nil
	}
	if releaseErr != nil {
		m.logger.Warn("stream release failed", "state", to, "error", releaseErr)
	}

	m.logger.Info("transition", "seq", tr.Seq, "from", tr.From, "to", tr.Target(),
		"attempt", tr.AttemptID, "cause", tr.Cause)
	m.record(tr)
	return tr
}

func (m *Machine) stay(cause string) Transition {
	return Transition{
		At:        m.now.Now(),
		From:      m.state,
		To:        m.state,
		AttemptID: m.ectx.AttemptID,
		Cause:     cause,
	}
}

func (m *Machine) beginAttempt(ctx context.Context, ev schedule.Event, now time.Time) {
	id := m.ids.Generate()
	actx, span := m.tracer.Start(ctx, "injection.attempt", trace.WithAttributes(
		attribute.String("tinj.attempt_id", id),
		attribute.String("tinj.kind", string(ev.Kind)),
		attribute.Float64("tinj.due_gps", ev.GPS()),
		attribute.Int64("tinj.epoch", m.epoch),
	))
	actx, cancel := context.WithCancelCause(actx)

	m.attempted[ev.Index] = true
	m.attemptCtx = actx
	m.span = span

	m.mu.Lock()
	m.ectx = ExecutionContext{
		AttemptID: id,
		Epoch:     m.epoch,
		Event:     &ev,
		Status:    StatusRunning,
		StartedAt: now,
	}
	m.cancelAttempt = cancel
	m.mu.Unlock()

	if m.deps.Ledger != nil {
		err := m.deps.Ledger.BeginAttempt(context.Background(), store.Attempt{
			ID:           id,
			Epoch:        m.epoch,
			DueGPS:       ev.GPS(),
			Kind:         string(ev.Kind),
			Mode:         int(ev.Mode),
			Scale:        ev.Scale,
			PayloadPath:  ev.PayloadPath,
			MetadataPath: ev.MetadataPath,
			StartedAt:    now,
		})
		if err != nil {
			m.logger.Warn("ledger write failed", "op", "begin attempt", "error", err)
		}
	}
}

// finish closes the attempt's ledger row, span and outcome count.
func (m *Machine) finish(outcome, kind string, f *Failure) {
	id := m.ectx.AttemptID
	if id == "" {
		return
	}
	cause := ""
	if f != nil && f.Cause != nil {
		cause = f.Cause.Error()
	}

	if m.deps.Ledger != nil {
		if err := m.deps.Ledger.FinishAttempt(context.Background(), id, outcome, cause, m.now.Now()); err != nil {
			m.logger.Warn("ledger write failed", "op", "finish attempt", "error", err)
		}
	}
	if m.outcomes != nil {
		m.outcomes.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("kind", kind),
		))
	}
	if m.span != nil {
		if f != nil {
			m.span.RecordError(f)
			m.span.SetStatus(codes.Error, string(f.Kind))
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
		m.span = nil
	}
}

// annotate appends to the attempt's tracking entry. Failures are logged
// and never change the attempt's outcome.
func (m *Machine) annotate(text string) {
	id := m.ectx.TrackingID
	if id == "" {
		return
	}
	ctx := context.Background()
	if m.attemptCtx != nil {
		ctx = context.WithoutCancel(m.attemptCtx)
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.AnnotateTimeout)
	defer cancel()
	if err := m.deps.Tracker.Annotate(ctx, id, text); err != nil {
		m.logger.Warn("annotation failed", "tracking_id", id, "error", err)
	}
}

func (m *Machine) writeChannel(name string, value float64) {
	if m.deps.Channels == nil || name == "" {
		return
	}
	if err := m.deps.Channels.Write(context.Background(), name, value); err != nil {
		m.logger.Warn("outcome channel write failed", "channel", name, "value", value, "error", err)
	}
}

func (m *Machine) record(tr Transition) {
	if m.deps.Ledger == nil {
		return
	}
	err := m.deps.Ledger.WriteTransition(context.Background(), store.Transition{
		Seq:       tr.Seq,
		AttemptID: tr.AttemptID,
		From:      string(tr.From),
		To:        tr.Target(),
		Cause:     tr.Cause,
		At:        tr.At,
	})
	if err != nil {
		m.logger.Warn("ledger write failed", "op", "transition", "seq", tr.Seq, "error", err)
	}
}

// pending returns future events not yet attempted this epoch.
func (m *Machine) pending(now time.Time) []schedule.Event {
	future := schedule.FutureEvents(m.events, now)
	out := future[:0:0]
	for _, ev := range future {
		if !m.attempted[ev.Index] {
			out = append(out, ev)
		}
	}
	return out
}

func (m *Machine) logWarnings(rep schedule.Report) {
	for _, w := range rep.Warnings {
		m.logger.Warn("events close end-to-start", "first", w.First, "second", w.Second,
			"gap", w.Gap, "min_gap", m.cfg.MinGap)
	}
}

func vetoCause(v gate.VetoStatus) string {
	if v.Err != nil {
		return "veto channel unreadable"
	}
	return fmt.Sprintf("external alert at %.3f", gpstime.ToSeconds(v.Last))
}
