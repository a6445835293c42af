// Package pipeline wires the decoding layers (L1 sample ring, L2 marker
// log, L3 epoch extraction, L4 classification) into one session-scoped
// orchestrator.
//
// Responsibilities: sample ingestion with first-sample clock alignment,
// flash marker recording, trial completion (extract, then either
// accumulate calibration epochs or classify), asynchronous model training
// with a single in-flight run, persistence of models and trial outcomes,
// and atomic session reset.
//
// The pipeline never blocks the stimulus loop: training runs on its own
// goroutine and publishes the result through a channel; classification is
// a pure in-memory pass over the trial's epochs.
//
// Dependency rule: pipeline may depend on every layer below it plus
// storage; nothing below depends on pipeline.
package pipeline
