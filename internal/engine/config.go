package engine

import (
	"github.com/roach88/tinj/internal/config"
	"github.com/roach88/tinj/internal/tracking"
)

// ConfigFrom maps the node configuration onto machine parameters.
func ConfigFrom(c config.Config) Config {
	cfg := DefaultConfig()
	cfg.ImminentWindow = c.ImminentWindowDuration()
	cfg.ArmingLead = c.ArmingLeadDuration()
	cfg.MinGap = c.MinCadenceDuration()
	cfg.PollInterval = c.PollIntervalDuration()
	cfg.CloseGrace = c.CloseGraceDuration()
	cfg.SampleRate = c.SampleRate
	cfg.ExcitationChannel = c.Channels.Excitation
	cfg.Instruments = c.InstrumentList()
	cfg.Pipeline = c.Tracking.Pipeline
	if cfg.Pipeline == "" {
		cfg.Pipeline = tracking.DefaultPipeline
	}
	cfg.Outcomes = DefaultOutcomeChannels(c.Channels.Model)
	return cfg
}
