package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tinj/internal/engine"
	"github.com/roach88/tinj/internal/schedule"
)

// Scenario defines one scripted run of the state machine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StartGPS is the fake clock's initial GPS time.
	StartGPS float64 `yaml:"start_gps"`

	// Schedule is schedule-file text loaded before the first step.
	Schedule string `yaml:"schedule"`

	// Config is a node configuration fragment. Missing keys take the
	// config file defaults.
	Config yaml.Node `yaml:"config,omitempty"`

	// Channels seeds process channel values. When the lock or mode
	// channel is absent it starts at 1.
	Channels map[string]float64 `yaml:"channels,omitempty"`

	// Faults configures the fake collaborators.
	Faults Faults `yaml:"faults,omitempty"`

	// PayloadSeconds is the length of every waveform. Default 2.
	PayloadSeconds float64 `yaml:"payload_seconds,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Faults make the fake collaborators misbehave.
type Faults struct {
	Open     string `yaml:"open,omitempty"`
	Send     string `yaml:"send,omitempty"`
	Register string `yaml:"register,omitempty"`
	Annotate string `yaml:"annotate,omitempty"`
	// StayOpen keeps streams open after the payload is sent.
	StayOpen bool `yaml:"stay_open,omitempty"`
	// MissingPayloads fail to read.
	MissingPayloads []string `yaml:"missing_payloads,omitempty"`
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	// Step calls Machine.Step this many times.
	Step int `yaml:"step,omitempty"`
	// Run steps until a state is entered.
	Run *RunStep `yaml:"run,omitempty"`
	// Advance moves the clock forward by seconds.
	Advance float64 `yaml:"advance,omitempty"`
	// Set writes channel values.
	Set map[string]float64 `yaml:"set,omitempty"`
	// Kill requests an operator kill.
	Kill bool `yaml:"kill,omitempty"`
	// Reload queues a schedule swap with the given schedule text.
	Reload *string `yaml:"reload,omitempty"`
}

// RunStep steps until the machine enters Until.
type RunStep struct {
	Until string `yaml:"until"`
	// Tick is the clock advance in seconds after a step that stays put.
	Tick float64 `yaml:"tick,omitempty"`
	// Max bounds the number of steps. Default 1000.
	Max int `yaml:"max,omitempty"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Step > 0, s.Run != nil, s.Advance != 0, s.Set != nil, s.Kill, s.Reload != nil} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the trace or the final world.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// To is a rendered target state such as SUCCESS or FAILURE(VetoAbort)
	// (trace_contains, trace_count).
	To string `yaml:"to,omitempty"`

	// Cause is a substring the transition cause must contain
	// (trace_contains).
	Cause string `yaml:"cause,omitempty"`

	// States is the expected order of targets (trace_order).
	States []string `yaml:"states,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected final state (final_state).
	State string `yaml:"state,omitempty"`

	// Channel and Value check a final channel value (channel).
	Channel string   `yaml:"channel,omitempty"`
	Value   *float64 `yaml:"value,omitempty"`

	// Contains is a substring some annotation must contain (annotation).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertChannel       = "channel"
	AssertAnnotation    = "annotation"
)

var knownStates = map[string]bool{}

func init() {
	for _, s := range engine.States() {
		knownStates[string(s)] = true
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.StartGPS <= 0 {
		return fmt.Errorf("start_gps must be positive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.PayloadSeconds < 0 {
		return fmt.Errorf("payload_seconds must be non-negative")
	}

	if _, err := schedule.Load(strings.NewReader(s.Schedule), schedule.LoadOptions{}); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		if step.Run != nil && !knownStates[step.Run.Until] {
			return fmt.Errorf("steps[%d]: unknown state %q", i, step.Run.Until)
		}
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must be non-negative", i)
		}
		if step.Reload != nil {
			if _, err := schedule.Load(strings.NewReader(*step.Reload), schedule.LoadOptions{}); err != nil {
				return fmt.Errorf("steps[%d]: reload: %w", i, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.To == "" {
			return fmt.Errorf("assertions[%d]: to is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.To == "" {
			return fmt.Errorf("assertions[%d]: to is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if !knownStates[a.State] {
			return fmt.Errorf("assertions[%d]: unknown state %q for final_state", index, a.State)
		}
	case AssertChannel:
		if a.Channel == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: channel and value are required for channel", index)
		}
	case AssertAnnotation:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for annotation", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
