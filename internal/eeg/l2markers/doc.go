// Package l2markers owns Layer 2 (Markers) of the EEG data model.
//
// Responsibilities: the clock-alignment anchor between the presentation
// clock and the sample-index domain, and the MarkerLog that translates
// flash events into Markers placed on the sample clock.
//
// Dependency rule: L2 may depend on L1 and the stimulus package, never on
// L3+.
package l2markers
