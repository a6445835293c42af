package l4decode

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
)

// gaussianSample draws a feature vector from an isotropic Gaussian around
// the given mean.
func gaussianSample(rng *rand.Rand, mean []float64, sigma float64) []float32 {
	out := make([]float32, len(mean))
	for i, m := range mean {
		out[i] = float32(m + rng.NormFloat64()*sigma)
	}
	return out
}

// separableSet builds a two-class set with well separated cluster means,
// imbalanced the way a speller calibration run is.
func separableSet(rng *rand.Rand, nTarget, nNonTarget, dim int) *TrainingSet {
	muT := make([]float64, dim)
	muN := make([]float64, dim)
	for i := range muT {
		muT[i] = 3.0
		muN[i] = -3.0
	}
	set := NewTrainingSet()
	for i := 0; i < nTarget; i++ {
		set.Add(TrainingSample{Features: gaussianSample(rng, muT, 1.0), Label: l3epochs.Target})
	}
	for i := 0; i < nNonTarget; i++ {
		set.Add(TrainingSample{Features: gaussianSample(rng, muN, 1.0), Label: l3epochs.NonTarget})
	}
	return set
}

func TestTrainLDAOnSeparableClusters(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	set := separableSet(rng, 20, 100, 8)

	model, err := TrainLDA(set, TrainingConfig{})
	require.NoError(t, err)
	require.NotNil(t, model)

	assert.Greater(t, model.TrainingAccuracy, float32(0.95))
	assert.Equal(t, uint32(40), model.NSamples) // balanced to 2x minority
	assert.Len(t, model.Weights, 8)
	assert.Len(t, model.FeatureMean, 8)
	assert.Len(t, model.FeatureStd, 8)
	assert.NotEmpty(t, model.ID)

	// The discriminant must separate fresh draws from the two clusters.
	muT := []float64{3, 3, 3, 3, 3, 3, 3, 3}
	muN := []float64{-3, -3, -3, -3, -3, -3, -3, -3}
	for i := 0; i < 50; i++ {
		assert.Positive(t, model.Score(gaussianSample(rng, muT, 1.0)))
		assert.Negative(t, model.Score(gaussianSample(rng, muN, 1.0)))
	}
}

func TestTrainLDARejectsSmallSets(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	t.Run("below minimum total", func(t *testing.T) {
		set := separableSet(rng, 2, 3, 4)
		model, err := TrainLDA(set, TrainingConfig{})
		assert.Nil(t, model)
		assert.True(t, errors.Is(err, ErrInsufficientTrainingData))
	})

	t.Run("degenerate class", func(t *testing.T) {
		set := separableSet(rng, 1, 20, 4)
		model, err := TrainLDA(set, TrainingConfig{})
		assert.Nil(t, model)
		assert.True(t, errors.Is(err, ErrInsufficientTrainingData))
	})
}

func TestTrainLDAHandlesHighDimensionality(t *testing.T) {
	// Feature dimensionality well above sample count: the ridge must keep
	// the covariance invertible and training must still succeed.
	rng := rand.New(rand.NewSource(17))
	set := separableSet(rng, 8, 40, 64)

	model, err := TrainLDA(set, TrainingConfig{})
	require.NoError(t, err)
	assert.Greater(t, model.TrainingAccuracy, float32(0.8))
}

func TestTrainLDAConstantFeature(t *testing.T) {
	// A dead channel (constant feature) must not produce NaNs.
	rng := rand.New(rand.NewSource(5))
	set := NewTrainingSet()
	for i := 0; i < 15; i++ {
		f := gaussianSample(rng, []float64{3, 3}, 1.0)
		set.Add(TrainingSample{Features: []float32{f[0], f[1], 7}, Label: l3epochs.Target})
	}
	for i := 0; i < 60; i++ {
		f := gaussianSample(rng, []float64{-3, -3}, 1.0)
		set.Add(TrainingSample{Features: []float32{f[0], f[1], 7}, Label: l3epochs.NonTarget})
	}

	model, err := TrainLDA(set, TrainingConfig{})
	require.NoError(t, err)
	for _, w := range model.Weights {
		assert.False(t, w != w, "NaN weight") // NaN check
	}
	assert.Greater(t, model.TrainingAccuracy, float32(0.9))
}

func TestBalancingIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	set := separableSet(rng, 10, 73, 6)

	a, err := TrainLDA(set, TrainingConfig{})
	require.NoError(t, err)
	b, err := TrainLDA(set, TrainingConfig{})
	require.NoError(t, err)

	// Same input set, same downsampling, same fit (IDs and timestamps
	// differ by construction).
	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
	assert.Equal(t, a.TrainingAccuracy, b.TrainingAccuracy)
	assert.Equal(t, a.NSamples, b.NSamples)
}

func TestTrainingSetCounts(t *testing.T) {
	set := NewTrainingSet()
	set.AddEpochs([]l3epochs.Epoch{
		{Features: []float32{1}, Label: l3epochs.Target},
		{Features: []float32{2}, Label: l3epochs.NonTarget},
		{Features: []float32{3}, Label: l3epochs.NonTarget},
	})
	targets, nonTargets := set.Counts()
	assert.Equal(t, 1, targets)
	assert.Equal(t, 2, nonTargets)
	assert.Equal(t, 3, set.Len())

	set.Clear()
	assert.Zero(t, set.Len())
}
