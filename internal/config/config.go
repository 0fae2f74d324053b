// Package config loads the node configuration.
//
// A YAML file is decoded to a generic map and unified with an embedded CUE
// schema that supplies defaults, rejects unknown keys and checks ranges.
// Environment variables then override a few deployment-specific fields.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tinj/internal/gpstime"
)

//go:embed schema.cue
var schemaSrc string

// Config is the node configuration.
type Config struct {
	IFO         string   `json:"ifo" env:"TINJ_IFO"`
	IFOs        []string `json:"ifos"`
	Instruments []string `json:"instruments"`
	Schedule    string   `json:"schedule" env:"TINJ_SCHEDULE"`
	Ledger      string   `json:"ledger" env:"TINJ_LEDGER"`
	// DevMode bypasses the mode gate. The veto is still honoured.
	DevMode bool `json:"dev_mode" env:"TINJ_DEV_MODE"`

	VetoWindow     float64 `json:"veto_window"`
	ImminentWindow float64 `json:"imminent_window"`
	ArmingLead     float64 `json:"arming_lead"`
	MinCadence     float64 `json:"min_cadence"`
	PollInterval   float64 `json:"poll_interval"`
	CloseGrace     float64 `json:"close_grace"`
	SampleRate     int     `json:"sample_rate"`

	Channels Channels `json:"channels"`
	Tracking Tracking `json:"tracking"`
}

// Channels names the process channels and selects their backend.
type Channels struct {
	Backend     string `json:"backend" env:"TINJ_CHANNEL_BACKEND"`
	RedisAddr   string `json:"redis_addr" env:"TINJ_REDIS_ADDR"`
	Prefix      string `json:"prefix"`
	Veto        string `json:"veto"`
	Lock        string `json:"lock"`
	Mode        string `json:"mode"`
	ModeBitmask int    `json:"mode_bitmask"`
	Model       string `json:"model"`
	Excitation  string `json:"excitation"`
}

// Tracking configures the tracking service. An empty URL selects the
// ledger-backed local tracker.
type Tracking struct {
	URL               string  `json:"url" env:"TINJ_TRACKING_URL"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Timeout           float64 `json:"timeout"`
	Pipeline          string  `json:"pipeline"`
	Tag               string  `json:"tag"`
}

// Load reads path, or only defaults when path is empty, then applies
// environment overrides.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		data = b
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML against the schema. Empty input yields the defaults.
func Parse(data []byte) (Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields environment overrides can break.
func (c Config) Validate() error {
	var errs []error
	switch c.Channels.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("channels.backend must be memory or redis, got %q", c.Channels.Backend))
	}
	if c.ArmingLead >= c.ImminentWindow {
		errs = append(errs, fmt.Errorf("arming_lead (%gs) must be below imminent_window (%gs)", c.ArmingLead, c.ImminentWindow))
	}
	return errors.Join(errs...)
}

// InstrumentList returns the instruments to register injections with:
// the configured list, or the node's own IFO.
func (c Config) InstrumentList() []string {
	if len(c.Instruments) > 0 {
		return c.Instruments
	}
	if c.IFO != "" {
		return []string{c.IFO}
	}
	return nil
}

// ValidationIFOs returns the IFOs the validate command checks.
func (c Config) ValidationIFOs() []string {
	if len(c.IFOs) > 0 {
		return c.IFOs
	}
	return c.InstrumentList()
}

func (c Config) VetoWindowDuration() time.Duration     { return gpstime.Seconds(c.VetoWindow) }
func (c Config) ImminentWindowDuration() time.Duration { return gpstime.Seconds(c.ImminentWindow) }
func (c Config) ArmingLeadDuration() time.Duration     { return gpstime.Seconds(c.ArmingLead) }
func (c Config) MinCadenceDuration() time.Duration     { return gpstime.Seconds(c.MinCadence) }
func (c Config) PollIntervalDuration() time.Duration   { return gpstime.Seconds(c.PollInterval) }
func (c Config) CloseGraceDuration() time.Duration     { return gpstime.Seconds(c.CloseGrace) }
