// Package quality provides an advisory signal-quality monitor for the
// acquisition stream: per-channel RMS and an estimate of mains-frequency
// interference from a windowed FFT over the most recent samples. It never
// blocks or gates the pipeline; its snapshots feed the status endpoint.
package quality
