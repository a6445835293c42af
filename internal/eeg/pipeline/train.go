package pipeline

import (
	"time"

	"github.com/yelabb/phantomspell/internal/eeg/l4decode"
	"github.com/yelabb/phantomspell/internal/eeg/storage/sqlite"
	"github.com/yelabb/phantomspell/internal/monitoring"
)

// TrainSummary describes a completed training run.
type TrainSummary struct {
	ModelID    string        `json:"model_id"`
	Accuracy   float32       `json:"accuracy"`
	NSamples   uint32        `json:"n_samples"`
	NTarget    int           `json:"n_target"`
	NNonTarget int           `json:"n_nontarget"`
	Duration   time.Duration `json:"duration"`
}

// TrainResult is delivered on the channel returned by TrainModelAsync.
type TrainResult struct {
	Summary *TrainSummary
	Err     error
}

type trainHandle struct {
	done   chan struct{}
	result TrainResult
}

// TrainModel fits a new discriminant from the accumulated calibration set
// and installs it on success. On failure the active model is left
// untouched. The run is recorded in the session store either way.
func (p *Pipeline) TrainModel() (*TrainSummary, error) {
	p.mu.Lock()
	training := p.training
	lambda := p.cfg.Lambda
	folds := p.cfg.CVFolds
	models := p.cfg.Models
	sessions := p.cfg.Sessions
	p.mu.Unlock()

	tgt, non := training.Counts()
	start := time.Now()

	model, err := l4decode.TrainLDA(training, l4decode.TrainingConfig{
		Lambda:   lambda,
		MaxFolds: folds,
	})
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.TrainingFailures.Inc()
		monitoring.Logf("pipeline: training failed after %s: %v", elapsed.Round(time.Millisecond), err)
		p.recordTrainingRun(sessions, &sqlite.TrainingRunRecord{
			NSamples:   tgt + non,
			NTarget:    tgt,
			NNonTarget: non,
			DurationMs: float64(elapsed) / float64(time.Millisecond),
			Error:      err.Error(),
		})
		return nil, err
	}

	p.mu.Lock()
	p.model = model
	p.mu.Unlock()

	p.metrics.TrainingRuns.Inc()
	p.metrics.TrainingSeconds.Observe(elapsed.Seconds())
	monitoring.Logf("pipeline: trained model %s in %s (accuracy %.3f, n=%d)",
		model.ID, elapsed.Round(time.Millisecond), model.TrainingAccuracy, model.NSamples)

	if models != nil {
		if err := models.Save(model); err != nil {
			monitoring.Logf("pipeline: persisting model %s: %v", model.ID, err)
		}
	}
	p.recordTrainingRun(sessions, &sqlite.TrainingRunRecord{
		ModelID:    model.ID,
		NSamples:   tgt + non,
		NTarget:    tgt,
		NNonTarget: non,
		Accuracy:   float64(model.TrainingAccuracy),
		DurationMs: float64(elapsed) / float64(time.Millisecond),
	})

	return &TrainSummary{
		ModelID:    model.ID,
		Accuracy:   model.TrainingAccuracy,
		NSamples:   model.NSamples,
		NTarget:    tgt,
		NNonTarget: non,
		Duration:   elapsed,
	}, nil
}

// TrainModelAsync starts training on a background goroutine and returns a
// channel that delivers the result exactly once. Only one training run is
// in flight at a time: callers arriving while a run is active get a
// channel tied to that same run instead of starting another.
func (p *Pipeline) TrainModelAsync() <-chan TrainResult {
	p.trainMu.Lock()
	h := p.inFlight
	if h == nil {
		h = &trainHandle{done: make(chan struct{})}
		p.inFlight = h
		go func() {
			summary, err := p.TrainModel()
			h.result = TrainResult{Summary: summary, Err: err}
			close(h.done)

			p.trainMu.Lock()
			p.inFlight = nil
			p.trainMu.Unlock()
		}()
	}
	p.trainMu.Unlock()

	out := make(chan TrainResult, 1)
	go func() {
		<-h.done
		out <- h.result
	}()
	return out
}

func (p *Pipeline) recordTrainingRun(sessions *sqlite.SessionStore, rec *sqlite.TrainingRunRecord) {
	if sessions == nil {
		return
	}
	rec.SessionID = p.sessionID
	if err := sessions.InsertTrainingRun(rec); err != nil {
		monitoring.Logf("pipeline: persisting training run: %v", err)
	}
}
