// Package xmeml serializes a reconstructed session to an FCP7-style XML
// interchange document.
//
// Ownership boundary:
//   - track/clip/marker layout: program track, per-camera ISO tracks,
//     graphics track, mirrored audio
//   - open-keyer policy (extend to session end or drop)
//   - deterministic XML rendering; identical inputs yield identical bytes
package xmeml
