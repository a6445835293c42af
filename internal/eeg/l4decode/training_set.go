package l4decode

import (
	"sync"

	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
)

// TrainingSample is one labelled feature vector accumulated during
// calibration.
type TrainingSample struct {
	Features []float32
	Label    l3epochs.Label
}

// TrainingSet accumulates calibration samples across trials. For an RxC
// grid only one flash in R+C contains the target, so the set is severely
// imbalanced; TrainLDA rebalances it.
type TrainingSet struct {
	mu      sync.Mutex
	samples []TrainingSample
}

// NewTrainingSet creates an empty set.
func NewTrainingSet() *TrainingSet { return &TrainingSet{} }

// Add appends one sample.
func (s *TrainingSet) Add(sample TrainingSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

// AddEpochs appends one sample per extracted epoch.
func (s *TrainingSet) AddEpochs(epochs []l3epochs.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range epochs {
		s.samples = append(s.samples, TrainingSample{Features: ep.Features, Label: ep.Label})
	}
}

// Samples returns a copy of the accumulated samples.
func (s *TrainingSet) Samples() []TrainingSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrainingSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Len returns the number of accumulated samples.
func (s *TrainingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Counts returns the number of target and nontarget samples.
func (s *TrainingSet) Counts() (target, nonTarget int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range s.samples {
		if sample.Label == l3epochs.Target {
			target++
		} else {
			nonTarget++
		}
	}
	return target, nonTarget
}

// Clear discards all samples.
func (s *TrainingSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = s.samples[:0]
}
