// Package engine implements the injection execution state machine.
//
// ARCHITECTURE:
//
// Single-Writer Step Loop:
// One goroutine owns the machine and calls Step (directly, or through Run).
// Each Step performs exactly one state action, so a test can drive the
// machine on a fake clock and observe every transition. Run adds the
// timing: steps that change state are followed immediately by the next,
// steps that stay put wait for the poll interval or an operator command.
//
// Attempt Flow:
//
//	WAIT -> CADENCE_CHECK -> REGISTER -> LOAD_PAYLOAD -> ARM -> PREWAIT -> ACTIVE -> SUCCESS -> WAIT
//
// Any state from CADENCE_CHECK to ACTIVE can end in FAILURE(kind), which
// returns to WAIT, or to ALERT_ACTIVE if the veto is live. KILL preempts
// any non-terminal state.
//
// Operator Commands:
// Kill and RequestReload may be called from any goroutine. They go through
// a FIFO command queue drained at the start of each Step. Kill also
// cancels the attempt context so a blocking send returns at once.
//
// CRITICAL PATTERNS:
//
// Stream Ownership:
// Only the machine opens, sends to, aborts or closes the stream. Release
// is the entry action of SUCCESS, FAILURE, KILL, WAIT and ALERT_ACTIVE.
//
// Fresh Reads:
// Veto and mode are read from their channels at every decision point and
// never cached across steps.
//
// Ledger Ordering:
// Every state change is stamped with a seq from Clock.Next(). Wall time is
// recorded but never used for ordering.
package engine
