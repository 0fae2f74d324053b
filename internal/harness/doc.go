// Package harness runs scripted scenarios against the injection state
// machine.
//
// A scenario starts the machine on a fake GPS clock with in-memory
// process channels, a fake excitation transport, a fake tracking service
// and an in-memory ledger. Its steps poke the world (set channels, move
// the clock, kill, reload) and step the machine. The resulting transition
// trace is checked by assertions and compared against a golden file.
//
// # Scenario Format
//
//	name: successful_injection
//	description: "One event runs from WAIT to SUCCESS"
//	start_gps: 1000
//	schedule: |
//	  1100 CBC 1 1.5 /inj/H1-cbc.txt None
//	config:            # node config fragment, same keys as the config file
//	  sample_rate: 4
//	channels:          # initial channel values; lock and mode default to 1
//	  GRD-ISC_LOCK_OK: 1
//	faults:
//	  register: "tracking service down"
//	steps:
//	  - run: { until: PREWAIT }
//	  - advance: 85
//	  - set: { CAL-INJ_EXTTRIG_ALERT_TIME: 1050 }
//	  - kill: true
//	  - reload: |
//	      1400 BURST 1 1 /inj/H1-burst.txt None
//	  - step: 1
//	assertions:
//	  - type: trace_order
//	    states: [CADENCE_CHECK, REGISTER, SUCCESS]
//	  - type: final_state
//	    state: WAIT
//
// A run step steps the machine until it enters the named state, advancing
// the clock by tick seconds (default 1) after every step that stays put.
//
// # Golden Files
//
// RunWithGolden renders the trace, final channel values, annotations and
// ledger rows as text and compares them with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
