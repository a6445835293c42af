package l3epochs

import (
	"errors"
	"math"

	"github.com/yelabb/phantomspell/internal/eeg/l1samples"
	"github.com/yelabb/phantomspell/internal/eeg/l2markers"
	"github.com/yelabb/phantomspell/internal/eeg/stimulus"
	"github.com/yelabb/phantomspell/internal/monitoring"
)

// Label classifies an epoch by whether its flash contained the attended
// cell.
type Label int

const (
	// NonTarget marks an epoch from a flash not containing the target.
	NonTarget Label = iota
	// Target marks an epoch from a flash containing the target.
	Target
)

// String returns "target" or "nontarget".
func (l Label) String() string {
	if l == Target {
		return "target"
	}
	return "nontarget"
}

// Epoch is a stimulus-aligned window of multichannel signal. Data is
// time x channel; Features is the same values flattened time-major for the
// classifier.
type Epoch struct {
	Flash    stimulus.FlashEvent
	Data     [][]float32
	Features []float32
	Label    Label
}

// ExtractorConfig describes the epoch window relative to flash onset.
type ExtractorConfig struct {
	PreStimulusMs   float64 // window before onset, used as baseline
	EpochDurationMs float64 // window after onset
	BaselineCorrect bool    // subtract per-channel pre-stimulus mean
	Metrics         *monitoring.Metrics
}

// Extractor pulls aligned epochs from a sample ring.
type Extractor struct {
	cfg     ExtractorConfig
	metrics *monitoring.Metrics
}

// NewExtractor creates an extractor. Metrics may be nil.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	m := cfg.Metrics
	if m == nil {
		m = monitoring.NopMetrics()
	}
	return &Extractor{cfg: cfg, metrics: m}
}

// Extract pulls one epoch per marker from the ring. target is the attended
// cell during calibration; when nil, labels fall back to the flash's own
// ContainsTarget flag. Markers whose windows are unavailable are skipped
// with a debug log and counted; extraction never fails as a whole.
func (e *Extractor) Extract(ring *l1samples.SampleRing, markers []l2markers.Marker, target *stimulus.GridPosition) []Epoch {
	sampleRate := ring.SampleRate()
	preSamples := int(math.Round(e.cfg.PreStimulusMs / 1000.0 * sampleRate))
	totalSamples := preSamples + int(math.Round(e.cfg.EpochDurationMs/1000.0*sampleRate))

	epochs := make([]Epoch, 0, len(markers))
	for _, m := range markers {
		window, err := ring.ExtractWindow(m.SampleIndex-int64(preSamples), totalSamples)
		if err != nil {
			if errors.Is(err, l1samples.ErrInsufficientData) {
				e.metrics.EpochsSkipped.Inc()
				monitoring.Debugf("[l3epochs] skipping marker at sample %d: %v", m.SampleIndex, err)
				continue
			}
			monitoring.Logf("[l3epochs] unexpected extraction error at sample %d: %v", m.SampleIndex, err)
			continue
		}

		if e.cfg.BaselineCorrect && preSamples > 0 {
			baselineCorrect(window, preSamples)
		}

		epochs = append(epochs, Epoch{
			Flash:    m.Flash,
			Data:     window,
			Features: flatten(window),
			Label:    labelFor(m.Flash, target),
		})
		e.metrics.EpochsExtracted.Inc()
	}
	return epochs
}

// baselineCorrect subtracts the mean of the pre-stimulus segment from each
// channel, in place.
func baselineCorrect(window [][]float32, preSamples int) {
	if len(window) == 0 {
		return
	}
	channels := len(window[0])
	for c := 0; c < channels; c++ {
		var sum float64
		for t := 0; t < preSamples; t++ {
			sum += float64(window[t][c])
		}
		mean := float32(sum / float64(preSamples))
		for t := range window {
			window[t][c] -= mean
		}
	}
}

// flatten packs a time x channel window into a time-major feature vector.
func flatten(window [][]float32) []float32 {
	if len(window) == 0 {
		return nil
	}
	out := make([]float32, 0, len(window)*len(window[0]))
	for _, row := range window {
		out = append(out, row...)
	}
	return out
}

func labelFor(ev stimulus.FlashEvent, target *stimulus.GridPosition) Label {
	if target != nil {
		if (ev.Axis == stimulus.AxisRow && ev.Index == target.Row) ||
			(ev.Axis == stimulus.AxisCol && ev.Index == target.Col) {
			return Target
		}
		return NonTarget
	}
	if ev.ContainsTarget {
		return Target
	}
	return NonTarget
}
