// Package tsl owns the tally stream decoding state machine.
//
// Ownership boundary:
// - growable receive buffer and dual-framing auto-detection
// - startup-dump suppression and per-bus debounce
// - single-active-connection TCP listener
// - program-cut and connection-change event emission
package tsl
