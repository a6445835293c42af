package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/yelabb/phantomspell/internal/config"
	"github.com/yelabb/phantomspell/internal/eeg/pipeline"
	"github.com/yelabb/phantomspell/internal/eeg/stimulus"
	"github.com/yelabb/phantomspell/internal/monitoring"
)

// Number of calibration trials the synthetic subject completes before
// training and switching to free spelling.
const syntheticCalibrationTrials = 3

// syntheticSubject simulates a subject attending one grid cell. Flashes of
// the attended row or column inject a P300-like bump 250-450ms after
// onset on every channel, on top of unit Gaussian noise.
type syntheticSubject struct {
	p     *pipeline.Pipeline
	sched *stimulus.Scheduler
	rng   *rand.Rand

	rows, cols int
	rate       float64
	channels   int

	vms        float64 // virtual clock, presentation milliseconds
	nextSample float64
	attended   stimulus.GridPosition
	bumps      [][2]float64
}

// runSyntheticSubject drives the pipeline in near real time until ctx is
// cancelled: calibration trials, one training run, then free spelling.
func runSyntheticSubject(ctx context.Context, p *pipeline.Pipeline, tuning *config.TuningConfig) {
	cfg := p.Config()
	s := &syntheticSubject{
		p: p,
		sched: stimulus.NewScheduler(stimulus.SchedulerConfig{
			Rows:                 tuning.GetRows(),
			Cols:                 tuning.GetCols(),
			TrialCount:           tuning.GetTrialCount(),
			FlashDurationMs:      tuning.GetFlashDurationMs(),
			InterFlashIntervalMs: tuning.GetInterFlashIntervalMs(),
		}),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		rows:     tuning.GetRows(),
		cols:     tuning.GetCols(),
		rate:     cfg.SampleRate,
		channels: cfg.ChannelCount,
	}
	monitoring.Logf("synthetic subject: %d calibration trials, then free spelling", syntheticCalibrationTrials)

	// Stream some baseline signal so the first flash already has a full
	// pre-stimulus window behind it.
	s.advance(500)

	calibrated := 0
	for {
		calibration := calibrated < syntheticCalibrationTrials
		s.pickTarget()

		var target *stimulus.GridPosition
		if calibration {
			target = &s.attended
		}
		if !s.runTrial(ctx, target, calibration) {
			return
		}

		if calibration {
			calibrated++
			if calibrated == syntheticCalibrationTrials {
				result := <-s.p.TrainModelAsync()
				if result.Err != nil {
					monitoring.Logf("synthetic subject: training failed: %v", result.Err)
					calibrated-- // gather another calibration trial
					continue
				}
				monitoring.Logf("synthetic subject: trained %s (accuracy %.3f)",
					result.Summary.ModelID, result.Summary.Accuracy)
			}
		}
	}
}

func (s *syntheticSubject) pickTarget() {
	s.attended = stimulus.GridPosition{
		Row: s.rng.Intn(s.rows),
		Col: s.rng.Intn(s.cols),
	}
}

// runTrial runs one trial against the wall clock. Returns false when ctx
// was cancelled mid-trial.
func (s *syntheticSubject) runTrial(ctx context.Context, target *stimulus.GridPosition, calibration bool) bool {
	s.sched.Start(target)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	done := false
	tailMs := 0.0
	for {
		select {
		case <-ctx.Done():
			s.sched.Stop()
			return false
		case <-ticker.C:
		}

		s.advance(10)
		if !done {
			ev, fin := s.sched.Advance(s.vms)
			if ev != nil {
				s.p.RecordFlashMarker(*ev)
				if s.attends(ev) {
					s.bumps = append(s.bumps, [2]float64{ev.Timestamp + 250, ev.Timestamp + 450})
				}
			}
			done = fin
			continue
		}

		// Let the tail of the last epoch stream in before extraction.
		tailMs += 10
		if tailMs >= 700 {
			break
		}
	}

	result, err := s.p.ProcessCompletedTrial(s.sched.Events(), target, calibration)
	if err != nil {
		monitoring.Logf("synthetic subject: trial failed: %v", err)
		return true
	}
	if result != nil {
		hit := result.PredictedRow == s.attended.Row && result.PredictedCol == s.attended.Col
		monitoring.Logf("synthetic subject: attended (%d,%d) decoded (%d,%d) confidence %.2f hit=%v",
			s.attended.Row, s.attended.Col, result.PredictedRow, result.PredictedCol,
			result.Confidence, hit)
	}
	return true
}

func (s *syntheticSubject) attends(ev *stimulus.FlashEvent) bool {
	return (ev.Axis == stimulus.AxisRow && ev.Index == s.attended.Row) ||
		(ev.Axis == stimulus.AxisCol && ev.Index == s.attended.Col)
}

// advance moves the virtual clock forward, pushing samples at the stream
// rate.
func (s *syntheticSubject) advance(ms float64) {
	period := 1000 / s.rate
	s.vms += ms
	for s.nextSample <= s.vms {
		ch := make([]float32, s.channels)
		for c := range ch {
			v := s.rng.NormFloat64()
			for _, b := range s.bumps {
				if s.nextSample >= b[0] && s.nextSample < b[1] {
					v += 2
				}
			}
			ch[c] = float32(v)
		}
		s.p.PushSample(s.nextSample, ch)
		s.nextSample += period
	}
	// Drop bumps that have fully passed.
	keep := s.bumps[:0]
	for _, b := range s.bumps {
		if b[1] > s.vms {
			keep = append(keep, b)
		}
	}
	s.bumps = keep
}
