// Package l3epochs owns Layer 3 (Epochs) of the EEG data model.
//
// Responsibilities: pulling stimulus-aligned time windows out of the L1
// sample ring using L2 markers, optional per-channel baseline correction
// against the pre-stimulus segment, and labelling epochs Target/NonTarget.
//
// Extraction is one-shot and best-effort: a marker whose window is no
// longer retained is skipped and logged, never retried.
//
// Dependency rule: L3 may depend on L1, L2 and stimulus, never on L4.
package l3epochs
