// Package timeline reconstructs track/segment geometry from a session's
// production events.
//
// Ownership boundary:
// - program-cut segmentation with placeholder camera fallback
// - keyer/graphics segmentation driven by keyer and slide events
// - marker derivation for keyer and slide events
//
// Reconstruction is a pure batch computation over a closed event list;
// serialization to the interchange format lives in package xmeml.
package timeline
