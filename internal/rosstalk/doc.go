// Package rosstalk owns the RossTalk command intake.
//
// Ownership boundary:
// - CRLF line protocol client with reconnect backoff
// - MEAUTO/KEYCUT/KEYAUTO/FTB command grammar
// - transition, keyer and fade-to-black event emission
package rosstalk
