package pipeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yelabb/phantomspell/internal/eeg/l1samples"
	"github.com/yelabb/phantomspell/internal/eeg/l2markers"
	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
	"github.com/yelabb/phantomspell/internal/eeg/l4decode"
	"github.com/yelabb/phantomspell/internal/eeg/quality"
	"github.com/yelabb/phantomspell/internal/eeg/stimulus"
	"github.com/yelabb/phantomspell/internal/eeg/storage/sqlite"
	"github.com/yelabb/phantomspell/internal/monitoring"
)

// Defaults for a 6x6 speller grid on a typical consumer EEG stream.
const (
	DefaultRows            = 6
	DefaultCols            = 6
	DefaultSampleRate      = 250.0
	DefaultChannelCount    = 8
	DefaultWindowSeconds   = 10.0
	DefaultPreStimulusMs   = 100.0
	DefaultEpochDurationMs = 600.0
)

// Config carries the full decoding geometry for one session. Zero values
// fall back to the defaults above; BaselineCorrect defaults to on via
// DisableBaseline because correction is the normal operating mode.
type Config struct {
	Rows            int
	Cols            int
	SampleRate      float64
	ChannelCount    int
	WindowSeconds   float64
	PreStimulusMs   float64
	EpochDurationMs float64
	DisableBaseline bool
	Lambda          float64 // ridge scale for training, 0 means default
	CVFolds         int     // cross-validation fold cap, 0 means default
	MainsHz         float64 // mains frequency for the quality monitor

	// Metrics may be nil to disable observability. Models and Sessions
	// may be nil to disable persistence.
	Metrics  *monitoring.Metrics
	Models   *sqlite.ModelStore
	Sessions *sqlite.SessionStore

	// EpochSink receives every extracted epoch batch on the trial path,
	// e.g. the web monitor's ERP accumulator. Implementations must be
	// fast. May be nil.
	EpochSink EpochSink
}

// EpochSink observes extracted epochs.
type EpochSink interface {
	AddEpochs(epochs []l3epochs.Epoch)
}

func (c Config) withDefaults() Config {
	if c.Rows <= 0 {
		c.Rows = DefaultRows
	}
	if c.Cols <= 0 {
		c.Cols = DefaultCols
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ChannelCount <= 0 {
		c.ChannelCount = DefaultChannelCount
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = DefaultWindowSeconds
	}
	if c.PreStimulusMs <= 0 {
		c.PreStimulusMs = DefaultPreStimulusMs
	}
	if c.EpochDurationMs <= 0 {
		c.EpochDurationMs = DefaultEpochDurationMs
	}
	if c.Metrics == nil {
		c.Metrics = monitoring.NopMetrics()
	}
	return c
}

// Pipeline is the per-session decoding orchestrator. All methods are safe
// for concurrent use; training runs on its own goroutine and never holds
// the pipeline lock while fitting.
type Pipeline struct {
	sessionID string
	metrics   *monitoring.Metrics

	mu         sync.Mutex
	cfg        Config
	ring       *l1samples.SampleRing
	markers    *l2markers.MarkerLog
	extractor  *l3epochs.Extractor
	training   *l4decode.TrainingSet
	quality    *quality.Monitor
	model      *l4decode.Model
	lastResult *l4decode.ClassificationResult
	trials     int

	trainMu  sync.Mutex
	inFlight *trainHandle
}

// New creates a pipeline for a fresh session.
func New(cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		sessionID: uuid.New().String(),
		metrics:   cfg.Metrics,
		training:  l4decode.NewTrainingSet(),
	}
	p.applyLocked(cfg)
	return p
}

// applyLocked rebuilds the stream-geometry-dependent components. Callers
// must hold p.mu (or be the constructor).
func (p *Pipeline) applyLocked(cfg Config) {
	p.cfg = cfg
	p.ring = l1samples.NewSampleRing(l1samples.Config{
		SampleRate:    cfg.SampleRate,
		ChannelCount:  cfg.ChannelCount,
		WindowSeconds: cfg.WindowSeconds,
	})
	p.markers = l2markers.NewMarkerLog(cfg.SampleRate)
	p.extractor = l3epochs.NewExtractor(l3epochs.ExtractorConfig{
		PreStimulusMs:   cfg.PreStimulusMs,
		EpochDurationMs: cfg.EpochDurationMs,
		BaselineCorrect: !cfg.DisableBaseline,
		Metrics:         p.metrics,
	})
	p.quality = quality.NewMonitor(quality.Config{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.ChannelCount,
		MainsHz:      cfg.MainsHz,
	})
}

// SessionID returns the identifier under which trials and training runs
// are persisted.
func (p *Pipeline) SessionID() string { return p.sessionID }

// Config returns the active configuration.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// PushSample ingests one multichannel sample. The first sample after
// construction (or reset) anchors the marker log's presentation clock to
// the sample clock. Returns the sample's monotonic stream index.
func (p *Pipeline) PushSample(timestamp float64, channels []float32) int64 {
	p.mu.Lock()
	idx := p.ring.Push(l1samples.Sample{Timestamp: timestamp, Channels: channels})
	if !p.markers.Aligned() {
		p.markers.Align(timestamp, idx)
		monitoring.Logf("pipeline: aligned marker clock at t=%.3fms sample=%d", timestamp, idx)
	}
	q := p.quality
	p.mu.Unlock()

	q.Observe(channels)
	p.metrics.SamplesPushed.Inc()
	return idx
}

// RecordFlashMarker records the onset of a flash against the sample
// clock. Markers arriving before the first sample cannot be aligned and
// are dropped with a logged warning; the trial simply loses that epoch.
func (p *Pipeline) RecordFlashMarker(ev stimulus.FlashEvent) (l2markers.Marker, bool) {
	p.mu.Lock()
	marker, err := p.markers.AddMarker(ev)
	p.mu.Unlock()
	if err != nil {
		monitoring.Logf("pipeline: dropping %s flash %d at t=%.3fms: %v",
			ev.Axis, ev.Index, ev.Timestamp, err)
		p.metrics.MarkersDropped.Inc()
		return l2markers.Marker{}, false
	}
	p.metrics.MarkersRecorded.Inc()
	return marker, true
}

// ProcessCompletedTrial extracts epochs for every marker recorded during
// the trial and clears the marker log. During calibration (target set,
// isCalibration true) the labelled epochs feed the training set and no
// classification happens. During free spelling the epochs are classified
// against the current model and the outcome is persisted.
func (p *Pipeline) ProcessCompletedTrial(events []stimulus.FlashEvent, target *stimulus.GridPosition, isCalibration bool) (*l4decode.ClassificationResult, error) {
	p.mu.Lock()
	markers := p.markers.Markers()
	ring := p.ring
	extractor := p.extractor
	model := p.model
	rows, cols := p.cfg.Rows, p.cfg.Cols
	sink := p.cfg.EpochSink
	p.markers.Clear()
	p.mu.Unlock()

	if len(markers) < len(events) {
		monitoring.Debugf("pipeline: trial recorded %d of %d flash markers", len(markers), len(events))
	}

	epochs := extractor.Extract(ring, markers, target)
	if sink != nil {
		sink.AddEpochs(epochs)
	}

	if isCalibration {
		p.mu.Lock()
		p.training.AddEpochs(epochs)
		p.mu.Unlock()
		return nil, nil
	}

	result, err := l4decode.ClassifyTrial(model, epochs, rows, cols)
	if err != nil {
		return nil, err
	}

	p.metrics.Classifications.Inc()
	p.metrics.ClassifyLatency.Observe(float64(result.LatencyMs) / 1000)

	p.mu.Lock()
	p.lastResult = result
	p.trials++
	sessions := p.cfg.Sessions
	p.mu.Unlock()

	if sessions != nil {
		rec := &sqlite.TrialRecord{
			SessionID:    p.sessionID,
			ModelID:      model.ID,
			PredictedRow: result.PredictedRow,
			PredictedCol: result.PredictedCol,
			Confidence:   float64(result.Confidence),
			LatencyMs:    float64(result.LatencyMs),
			EpochCount:   len(epochs),
		}
		if err := sessions.InsertTrial(rec); err != nil {
			monitoring.Logf("pipeline: persisting trial: %v", err)
		}
	}

	return result, nil
}

// TrainingCounts returns the per-class sizes of the accumulated
// calibration set.
func (p *Pipeline) TrainingCounts() (target, nonTarget int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.training.Counts()
}

// Model returns the active model, nil before the first successful
// training run (or restored model).
func (p *Pipeline) Model() *l4decode.Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// SetModel installs a previously trained model, typically restored from
// the model store at startup.
func (p *Pipeline) SetModel(m *l4decode.Model) {
	p.mu.Lock()
	p.model = m
	p.mu.Unlock()
	if m != nil {
		monitoring.Logf("pipeline: restored model %s (accuracy %.3f, n=%d)",
			m.ID, m.TrainingAccuracy, m.NSamples)
	}
}

// LastResult returns the most recent free-spelling classification, nil if
// none has completed yet.
func (p *Pipeline) LastResult() *l4decode.ClassificationResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastResult
}

// Reset clears every per-session accumulation atomically: ring contents,
// markers and their clock anchor, the training set, quality statistics,
// and the last result. The trained model survives a reset so free
// spelling can continue in a fresh session.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(p.cfg)
	p.training.Clear()
	p.lastResult = nil
	p.trials = 0
	monitoring.Logf("pipeline: session state reset")
}

// Reconfigure applies a new stream geometry. Buffered samples and pending
// markers are invalidated because their indices no longer map to the new
// stream; the calibration set is cleared because feature dimensionality
// follows the geometry. The model is kept: scoring tolerates dimension
// mismatches and callers typically retrain right after reconfiguring.
func (p *Pipeline) Reconfigure(sampleRate float64, channelCount int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("reconfigure: sample rate must be positive, got %v", sampleRate)
	}
	if channelCount <= 0 {
		return fmt.Errorf("reconfigure: channel count must be positive, got %d", channelCount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.cfg
	cfg.SampleRate = sampleRate
	cfg.ChannelCount = channelCount
	p.applyLocked(cfg)
	p.training.Clear()
	monitoring.Logf("pipeline: reconfigured to %gHz x %d channels", sampleRate, channelCount)
	return nil
}

// Apply replaces the tuning-derived portion of the configuration, used by
// the web monitor's parameter endpoint. Same invalidation rules as
// Reconfigure.
func (p *Pipeline) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg.Metrics = p.metrics
	cfg.Models = p.cfg.Models
	cfg.Sessions = p.cfg.Sessions
	cfg.EpochSink = p.cfg.EpochSink
	p.applyLocked(cfg)
	p.training.Clear()
}

// Status is a point-in-time snapshot for the web monitor.
type Status struct {
	SessionID         string                         `json:"session_id"`
	Aligned           bool                           `json:"aligned"`
	SamplesBuffered   int                            `json:"samples_buffered"`
	BufferCapacity    int                            `json:"buffer_capacity"`
	MarkersPending    int                            `json:"markers_pending"`
	TrainingTarget    int                            `json:"training_target"`
	TrainingNonTarget int                            `json:"training_nontarget"`
	Trials            int                            `json:"trials"`
	ModelID           string                         `json:"model_id,omitempty"`
	ModelAccuracy     float32                        `json:"model_accuracy,omitempty"`
	Training          bool                           `json:"training"`
	LastResult        *l4decode.ClassificationResult `json:"last_result,omitempty"`
	Quality           []quality.ChannelStats         `json:"quality,omitempty"`
}

// Status reports the pipeline's current state.
func (p *Pipeline) Status() Status {
	p.trainMu.Lock()
	training := p.inFlight != nil
	p.trainMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	tgt, non := p.training.Counts()
	st := Status{
		SessionID:         p.sessionID,
		Aligned:           p.markers.Aligned(),
		SamplesBuffered:   p.ring.Count(),
		BufferCapacity:    p.ring.Capacity(),
		MarkersPending:    p.markers.Len(),
		TrainingTarget:    tgt,
		TrainingNonTarget: non,
		Trials:            p.trials,
		Training:          training,
		LastResult:        p.lastResult,
	}
	if p.model != nil {
		st.ModelID = p.model.ID
		st.ModelAccuracy = p.model.TrainingAccuracy
	}
	if p.quality.Ready() {
		st.Quality = p.quality.Snapshot()
	}
	return st
}
