// Package switcher owns the in-memory model of switcher bus state.
//
// Ownership boundary:
// - per-source tally/label table keyed by protocol source index
// - program/preview source maps per named bus
// - change detection separating startup dumps from real reassignments
package switcher
