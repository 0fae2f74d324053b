// Package gate decides whether the process currently allows an injection.
//
// Two independent checks exist. The veto monitor suppresses injections for a
// trailing window after any external alert. The mode gate requires the
// process to be locked and in the mode the event asks for. Both read their
// channels on every call; nothing is cached between evaluations.
package gate
