package l4decode

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelJSONRoundTrip(t *testing.T) {
	m := &Model{
		ID:               "6a1f6e0e-0000-4000-8000-000000000001",
		Weights:          []float32{0.5, -1.25, 3.75},
		Bias:             -0.125,
		FeatureMean:      []float32{1, 2, 3},
		FeatureStd:       []float32{0.5, 1, 2},
		TrainingAccuracy: 0.9375,
		NSamples:         42,
		CreatedAt:        time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
	}

	data, err := m.EncodeJSON()
	require.NoError(t, err)

	got, err := DecodeModelJSON(data)
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeModelJSONRejectsGarbage(t *testing.T) {
	_, err := DecodeModelJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestScoreStandardizesFeatures(t *testing.T) {
	m := &Model{
		Weights:     []float32{2, 1},
		Bias:        0.5,
		FeatureMean: []float32{10, -4},
		FeatureStd:  []float32{2, 1},
	}
	// 2*((12-10)/2) + 1*((-4-(-4))/1) + 0.5 = 2.5
	assert.InDelta(t, 2.5, m.Score([]float32{12, -4}), 1e-6)
}

func TestScoreZeroStdTreatedAsUnit(t *testing.T) {
	m := &Model{
		Weights:     []float32{1},
		FeatureMean: []float32{5},
		FeatureStd:  []float32{0},
	}
	assert.InDelta(t, 2.0, m.Score([]float32{7}), 1e-6)
}
