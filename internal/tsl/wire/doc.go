// Package wire owns the TSL tally wire formats.
//
// Ownership boundary:
// - UMD 5.0 variable-length message codec (length-prefixed, little-endian)
// - UMD 3.1 fixed 18-byte message codec
// - control-word tally bit extraction
// - "index:bus:source" display label grammar
package wire
