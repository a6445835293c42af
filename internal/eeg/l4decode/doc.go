// Package l4decode owns Layer 4 (Decoding) of the EEG data model: the
// training set accumulated during calibration, the regularized linear
// discriminant trained from it, and trial classification that turns scored
// epochs into a row/column selection.
//
// Dependency rule: L4 may depend on L3 and below, never on the pipeline.
package l4decode
