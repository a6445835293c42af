package l4decode

import (
	"encoding/json"
	"fmt"
	"time"
)

// Model is a trained linear discriminant. Models are immutable: a new
// training run produces a new Model and the old one is superseded, never
// mutated. JSON encoding round-trips every field exactly so persistence
// can live outside this package.
type Model struct {
	ID               string    `json:"id"`
	Weights          []float32 `json:"weights"`
	Bias             float32   `json:"bias"`
	FeatureMean      []float32 `json:"feature_mean"`
	FeatureStd       []float32 `json:"feature_std"`
	TrainingAccuracy float32   `json:"training_accuracy"`
	NSamples         uint32    `json:"n_samples"`
	CreatedAt        time.Time `json:"created_at"`
}

// Score projects a raw feature vector onto the discriminant:
// w . ((x - mean) / std) + b. Positive scores lean Target.
func (m *Model) Score(features []float32) float64 {
	score := float64(m.Bias)
	n := len(m.Weights)
	if len(features) < n {
		n = len(features)
	}
	for i := 0; i < n; i++ {
		std := m.FeatureStd[i]
		if std == 0 {
			std = 1
		}
		score += float64(m.Weights[i]) * float64((features[i]-m.FeatureMean[i])/std)
	}
	return score
}

// EncodeJSON serializes the model.
func (m *Model) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding model %s: %w", m.ID, err)
	}
	return data, nil
}

// DecodeModelJSON deserializes a model previously produced by EncodeJSON.
func DecodeModelJSON(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	return &m, nil
}
