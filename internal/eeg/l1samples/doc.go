// Package l1samples owns Layer 1 (Samples) of the EEG data model.
//
// Responsibilities: the Sample type, the fixed-capacity SampleRing that
// holds the most recent seconds of the continuous multichannel stream,
// and window extraction in the sample-index domain.
//
// Dependency rule: L1 depends on nothing above it.
package l1samples
