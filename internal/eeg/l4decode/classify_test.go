package l4decode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
	"github.com/yelabb/phantomspell/internal/eeg/stimulus"
)

// identityModel scores an epoch by its single feature value.
func identityModel() *Model {
	return &Model{
		ID:          "test",
		Weights:     []float32{1},
		Bias:        0,
		FeatureMean: []float32{0},
		FeatureStd:  []float32{1},
	}
}

func epoch(axis stimulus.Axis, index int, value float32) l3epochs.Epoch {
	return l3epochs.Epoch{
		Flash:    stimulus.FlashEvent{Axis: axis, Index: index},
		Features: []float32{value},
	}
}

func TestClassifyTrialPicksMaxTally(t *testing.T) {
	epochs := []l3epochs.Epoch{
		epoch(stimulus.AxisRow, 0, -1),
		epoch(stimulus.AxisRow, 1, -1),
		epoch(stimulus.AxisRow, 2, 5),
		epoch(stimulus.AxisCol, 0, -2),
		epoch(stimulus.AxisCol, 1, 3),
		epoch(stimulus.AxisCol, 2, -2),
	}
	res, err := ClassifyTrial(identityModel(), epochs, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PredictedRow)
	assert.Equal(t, 1, res.PredictedCol)
	assert.Greater(t, res.Confidence, float32(0))
	assert.GreaterOrEqual(t, res.LatencyMs, float32(0))
}

func TestClassifyTrialSumsAcrossCycles(t *testing.T) {
	// Row 1 wins only when scores accumulate across repeated cycles.
	epochs := []l3epochs.Epoch{
		epoch(stimulus.AxisRow, 0, 4),
		epoch(stimulus.AxisRow, 1, 3),
		epoch(stimulus.AxisRow, 0, -2),
		epoch(stimulus.AxisRow, 1, 3),
		epoch(stimulus.AxisCol, 0, 1),
		epoch(stimulus.AxisCol, 1, 0),
	}
	res, err := ClassifyTrial(identityModel(), epochs, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PredictedRow) // 6 beats 2
	assert.Equal(t, 0, res.PredictedCol)
}

func TestClassifyTrialTieBreaksToLowestIndex(t *testing.T) {
	epochs := []l3epochs.Epoch{
		epoch(stimulus.AxisRow, 0, 2),
		epoch(stimulus.AxisRow, 1, 2),
		epoch(stimulus.AxisRow, 2, 0),
		epoch(stimulus.AxisCol, 0, 1),
		epoch(stimulus.AxisCol, 1, 1),
		epoch(stimulus.AxisCol, 2, 1),
	}
	res, err := ClassifyTrial(identityModel(), epochs, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PredictedRow)
	assert.Equal(t, 0, res.PredictedCol)
	// Fully flat column tallies give zero margin, so combined confidence
	// is zero.
	assert.Equal(t, float32(0), res.Confidence)
}

func TestClassifyTrialDeterministic(t *testing.T) {
	epochs := []l3epochs.Epoch{
		epoch(stimulus.AxisRow, 0, 1.5),
		epoch(stimulus.AxisRow, 1, -0.5),
		epoch(stimulus.AxisCol, 0, 0.25),
		epoch(stimulus.AxisCol, 1, 2.25),
	}
	m := identityModel()
	a, err := ClassifyTrial(m, epochs, 2, 2)
	require.NoError(t, err)
	b, err := ClassifyTrial(m, epochs, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, a.PredictedRow, b.PredictedRow)
	assert.Equal(t, a.PredictedCol, b.PredictedCol)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestClassifyTrialWithoutModel(t *testing.T) {
	res, err := ClassifyTrial(nil, nil, 6, 6)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrModelNotReady))
}

func TestClassifyTrialIgnoresOutOfRangeIndices(t *testing.T) {
	epochs := []l3epochs.Epoch{
		epoch(stimulus.AxisRow, 7, 100), // outside a 2x2 grid
		epoch(stimulus.AxisRow, 0, 1),
		epoch(stimulus.AxisRow, 1, 0),
		epoch(stimulus.AxisCol, 0, 1),
		epoch(stimulus.AxisCol, 1, 0),
	}
	res, err := ClassifyTrial(identityModel(), epochs, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PredictedRow)
}

func TestConfidenceClampedToUnitInterval(t *testing.T) {
	epochs := []l3epochs.Epoch{
		epoch(stimulus.AxisRow, 0, 10),
		epoch(stimulus.AxisRow, 1, -10),
		epoch(stimulus.AxisCol, 0, 10),
		epoch(stimulus.AxisCol, 1, -10),
	}
	res, err := ClassifyTrial(identityModel(), epochs, 2, 2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Confidence, float32(0))
	assert.LessOrEqual(t, res.Confidence, float32(1))
	// Two entries: margin equals range, so confidence saturates at 1.
	assert.Equal(t, float32(1), res.Confidence)
}
