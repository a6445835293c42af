package l4decode

import (
	"fmt"
	"time"

	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
	"github.com/yelabb/phantomspell/internal/eeg/stimulus"
)

// ErrModelNotReady is returned when classification is requested before any
// model has been trained or loaded. There is no silent fallback; the caller
// surfaces this to the user (run calibration first).
var ErrModelNotReady = fmt.Errorf("no trained model loaded")

// ClassificationResult is one trial's decoded selection.
type ClassificationResult struct {
	PredictedRow int     `json:"predicted_row"`
	PredictedCol int     `json:"predicted_col"`
	Confidence   float32 `json:"confidence"`
	LatencyMs    float32 `json:"latency_ms"`
}

// ClassifyTrial scores every epoch against the model and accumulates the
// scores into row and column tallies keyed by each epoch's flash, summed
// across however many cycles the trial contained. The predicted row and
// column are the indices with the maximum tally; ties break to the lowest
// index, a deliberate deterministic policy. Confidence is the smaller of
// the two normalized best-vs-second margins, clamped to [0,1].
func ClassifyTrial(m *Model, epochs []l3epochs.Epoch, rows, cols int) (*ClassificationResult, error) {
	if m == nil {
		return nil, ErrModelNotReady
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid grid %dx%d", rows, cols)
	}

	start := time.Now()

	rowTally := make([]float64, rows)
	colTally := make([]float64, cols)
	for _, ep := range epochs {
		score := m.Score(ep.Features)
		switch ep.Flash.Axis {
		case stimulus.AxisRow:
			if ep.Flash.Index >= 0 && ep.Flash.Index < rows {
				rowTally[ep.Flash.Index] += score
			}
		case stimulus.AxisCol:
			if ep.Flash.Index >= 0 && ep.Flash.Index < cols {
				colTally[ep.Flash.Index] += score
			}
		}
	}

	bestRow, rowMargin := argmaxMargin(rowTally)
	bestCol, colMargin := argmaxMargin(colTally)

	confidence := rowMargin
	if colMargin < confidence {
		confidence = colMargin
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &ClassificationResult{
		PredictedRow: bestRow,
		PredictedCol: bestCol,
		Confidence:   float32(confidence),
		LatencyMs:    float32(time.Since(start).Seconds() * 1000),
	}, nil
}

// argmaxMargin returns the index of the maximum tally (lowest index on
// ties) and the margin between the best and second-best tallies normalized
// by the tally range. A single-entry or flat tally yields margin 1 and 0
// respectively.
func argmaxMargin(tally []float64) (best int, margin float64) {
	if len(tally) == 1 {
		return 0, 1
	}
	best = 0
	for i := 1; i < len(tally); i++ {
		if tally[i] > tally[best] {
			best = i
		}
	}

	second := -1
	lo, hi := tally[best], tally[best]
	for i, v := range tally {
		if i == best {
			continue
		}
		if second < 0 || v > tally[second] {
			second = i
		}
		if v < lo {
			lo = v
		}
	}
	if hi == lo {
		return best, 0
	}
	return best, (tally[best] - tally[second]) / (hi - lo)
}
