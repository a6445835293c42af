package l4decode

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
)

// ErrInsufficientTrainingData is returned when training is requested with
// too few samples or a degenerate class. The caller's remedy is more
// calibration; any previously trained model is left untouched.
var ErrInsufficientTrainingData = fmt.Errorf("insufficient training data")

// MinTrainingSamples is the smallest accumulated set TrainLDA accepts.
const MinTrainingSamples = 10

// TrainingConfig tunes the LDA fit. Zero values take defaults.
type TrainingConfig struct {
	// Lambda scales the ridge term added to the pooled covariance,
	// lambda * trace(S)/d on the diagonal. Guarantees invertibility when
	// feature dimensionality approaches or exceeds the sample count.
	Lambda float64
	// MaxFolds caps the cross-validation fold count (default 10).
	MaxFolds int
}

const (
	defaultLambda   = 1e-3
	defaultMaxFolds = 10
	// below this many balanced samples, use leave-one-out
	looThreshold = 20
)

// TrainLDA fits a regularized linear discriminant to the accumulated
// calibration set. The majority (NonTarget) class is down-sampled to the
// minority count with evenly spaced selection so training is reproducible.
// Features are standardized and the normalization stored on the model.
// Training accuracy is estimated by k-fold cross-validation, leave-one-out
// for small sets.
func TrainLDA(set *TrainingSet, cfg TrainingConfig) (*Model, error) {
	if cfg.Lambda <= 0 {
		cfg.Lambda = defaultLambda
	}
	if cfg.MaxFolds <= 0 {
		cfg.MaxFolds = defaultMaxFolds
	}

	samples := set.Samples()
	if len(samples) < MinTrainingSamples {
		return nil, fmt.Errorf("%w: %d samples, need %d",
			ErrInsufficientTrainingData, len(samples), MinTrainingSamples)
	}

	targets, nonTargets := splitByLabel(samples)
	balanced := balance(targets, nonTargets)
	targets, nonTargets = splitByLabel(balanced)
	if len(targets) < 2 || len(nonTargets) < 2 {
		return nil, fmt.Errorf("%w: degenerate class after balancing (%d target, %d nontarget)",
			ErrInsufficientTrainingData, len(targets), len(nonTargets))
	}

	dim := len(balanced[0].Features)
	x, y := toMatrix(balanced, dim)

	mean, std := columnStats(x)
	standardize(x, mean, std)

	weights, bias := fitDiscriminant(x, y, cfg.Lambda)
	accuracy := crossValidate(x, y, cfg)

	model := &Model{
		ID:               uuid.NewString(),
		Weights:          toFloat32(weights),
		Bias:             float32(bias),
		FeatureMean:      toFloat32(mean),
		FeatureStd:       toFloat32(std),
		TrainingAccuracy: float32(accuracy),
		NSamples:         uint32(len(balanced)),
		CreatedAt:        time.Now().UTC(),
	}
	return model, nil
}

func splitByLabel(samples []TrainingSample) (targets, nonTargets []TrainingSample) {
	for _, s := range samples {
		if s.Label == l3epochs.Target {
			targets = append(targets, s)
		} else {
			nonTargets = append(nonTargets, s)
		}
	}
	return targets, nonTargets
}

// balance down-samples the majority class to the minority count using
// evenly spaced selection, keeping training deterministic.
func balance(targets, nonTargets []TrainingSample) []TrainingSample {
	minority, majority := targets, nonTargets
	if len(minority) > len(majority) {
		minority, majority = majority, minority
	}
	n := len(minority)
	out := make([]TrainingSample, 0, 2*n)
	out = append(out, minority...)
	if n == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		out = append(out, majority[i*len(majority)/n])
	}
	return out
}

// toMatrix packs samples into an n x d matrix and a label vector
// (+1 target, -1 nontarget).
func toMatrix(samples []TrainingSample, dim int) (*mat.Dense, []float64) {
	x := mat.NewDense(len(samples), dim, nil)
	y := make([]float64, len(samples))
	for i, s := range samples {
		for j := 0; j < dim && j < len(s.Features); j++ {
			x.Set(i, j, float64(s.Features[j]))
		}
		if s.Label == l3epochs.Target {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}
	return x, y
}

// columnStats returns per-column mean and population standard deviation.
// Constant columns get std 1 so standardization is a no-op there.
func columnStats(x *mat.Dense) (mean, std []float64) {
	n, d := x.Dims()
	mean = make([]float64, d)
	std = make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		mean[j] = sum / float64(n)
		var ss float64
		for i := 0; i < n; i++ {
			dev := x.At(i, j) - mean[j]
			ss += dev * dev
		}
		std[j] = math.Sqrt(ss / float64(n))
		if std[j] < 1e-12 {
			std[j] = 1
		}
	}
	return mean, std
}

func standardize(x *mat.Dense, mean, std []float64) {
	n, d := x.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, (x.At(i, j)-mean[j])/std[j])
		}
	}
}

// fitDiscriminant solves w = Sigma^-1 (mu_t - mu_n) over the standardized
// data with a ridge term on the pooled within-class covariance, and places
// the bias at the midpoint of the two class mean projections.
func fitDiscriminant(x *mat.Dense, y []float64, lambda float64) (weights []float64, bias float64) {
	n, d := x.Dims()

	muT := make([]float64, d)
	muN := make([]float64, d)
	var nT, nN int
	for i := 0; i < n; i++ {
		if y[i] > 0 {
			nT++
			for j := 0; j < d; j++ {
				muT[j] += x.At(i, j)
			}
		} else {
			nN++
			for j := 0; j < d; j++ {
				muN[j] += x.At(i, j)
			}
		}
	}
	for j := 0; j < d; j++ {
		muT[j] /= float64(nT)
		muN[j] /= float64(nN)
	}

	// Pooled within-class covariance.
	sigma := mat.NewSymDense(d, nil)
	dev := make([]float64, d)
	for i := 0; i < n; i++ {
		mu := muN
		if y[i] > 0 {
			mu = muT
		}
		for j := 0; j < d; j++ {
			dev[j] = x.At(i, j) - mu[j]
		}
		sigma.SymRankOne(sigma, 1, mat.NewVecDense(d, dev))
	}
	denom := float64(n - 2)
	if denom < 1 {
		denom = 1
	}
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sigma.SetSym(i, j, sigma.At(i, j)/denom)
		}
	}

	// Ridge scaled to the feature variance so the regularization strength
	// is dimensionless. Handles singular covariance internally; callers
	// never see it as an error.
	var trace float64
	for i := 0; i < d; i++ {
		trace += sigma.At(i, i)
	}
	ridge := lambda * trace / float64(d)
	if ridge <= 0 {
		ridge = lambda
	}
	for i := 0; i < d; i++ {
		sigma.SetSym(i, i, sigma.At(i, i)+ridge)
	}

	diff := mat.NewVecDense(d, nil)
	for j := 0; j < d; j++ {
		diff.SetVec(j, muT[j]-muN[j])
	}

	w := mat.NewVecDense(d, nil)
	var chol mat.Cholesky
	if chol.Factorize(sigma) {
		if err := chol.SolveVecTo(w, diff); err != nil {
			solveLU(w, sigma, diff)
		}
	} else {
		solveLU(w, sigma, diff)
	}

	weights = make([]float64, d)
	var projMid float64
	for j := 0; j < d; j++ {
		weights[j] = w.AtVec(j)
		projMid += weights[j] * (muT[j] + muN[j])
	}
	bias = -projMid / 2
	return weights, bias
}

// solveLU is the fallback when Cholesky factorization fails despite the
// ridge (extreme conditioning).
func solveLU(dst *mat.VecDense, a mat.Matrix, b *mat.VecDense) {
	var lu mat.LU
	lu.Factorize(a)
	if err := lu.SolveVecTo(dst, false, b); err != nil {
		// Last resort: fall back to the class-mean difference direction.
		dst.CopyVec(b)
	}
}

// crossValidate estimates held-out accuracy with stratified k-fold CV over
// the standardized data. k <= min(MaxFolds, n/2); leave-one-out below the
// LOO threshold.
func crossValidate(x *mat.Dense, y []float64, cfg TrainingConfig) float64 {
	n, d := x.Dims()
	k := cfg.MaxFolds
	if n/2 < k {
		k = n / 2
	}
	if n < looThreshold {
		k = n
	}
	if k < 2 {
		k = 2
	}

	// Stratified assignment: walk targets then nontargets, dealing fold
	// numbers round-robin so every fold sees both classes where possible.
	folds := make([]int, n)
	next := 0
	for _, want := range []bool{true, false} {
		for i := 0; i < n; i++ {
			if (y[i] > 0) == want {
				folds[i] = next % k
				next++
			}
		}
	}

	correct := 0
	trainRows := make([]float64, 0, (n-1)*d)
	trainY := make([]float64, 0, n-1)
	for fold := 0; fold < k; fold++ {
		trainRows = trainRows[:0]
		trainY = trainY[:0]
		for i := 0; i < n; i++ {
			if folds[i] == fold {
				continue
			}
			trainRows = append(trainRows, x.RawRowView(i)...)
			trainY = append(trainY, y[i])
		}
		if len(trainY) < 2 || !hasBothClasses(trainY) {
			continue
		}
		trainX := mat.NewDense(len(trainY), d, trainRows)
		w, b := fitDiscriminant(trainX, trainY, cfg.Lambda)

		for i := 0; i < n; i++ {
			if folds[i] != fold {
				continue
			}
			score := b
			row := x.RawRowView(i)
			for j := 0; j < d; j++ {
				score += w[j] * row[j]
			}
			if (score > 0) == (y[i] > 0) {
				correct++
			}
		}
	}
	return float64(correct) / float64(n)
}

func hasBothClasses(y []float64) bool {
	var pos, neg bool
	for _, v := range y {
		if v > 0 {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
