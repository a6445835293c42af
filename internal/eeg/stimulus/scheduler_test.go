package stimulus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(rows, cols, trials int, seed int64) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Rows:                 rows,
		Cols:                 cols,
		TrialCount:           trials,
		FlashDurationMs:      100,
		InterFlashIntervalMs: 75,
		Rand:                 rand.New(rand.NewSource(seed)),
	})
}

// runTrial drives the scheduler with a fixed tick until completion and
// returns the emitted events in order.
func runTrial(t *testing.T, s *Scheduler) []FlashEvent {
	t.Helper()
	var events []FlashEvent
	clock := 0.0
	for i := 0; i < 100000; i++ {
		ev, done := s.Advance(clock)
		if ev != nil {
			events = append(events, *ev)
		}
		if done {
			return events
		}
		clock += 16.7 // ~60Hz render tick
	}
	t.Fatal("trial did not complete")
	return nil
}

func TestEveryRowAndColumnOncePerCycle(t *testing.T) {
	const rows, cols, trials = 6, 6, 3
	s := newTestScheduler(rows, cols, trials, 1)
	s.Start(nil)
	events := runTrial(t, s)

	require.Len(t, events, trials*(rows+cols))
	for cycle := 0; cycle < trials; cycle++ {
		seenRows := map[int]int{}
		seenCols := map[int]int{}
		for _, ev := range events[cycle*(rows+cols) : (cycle+1)*(rows+cols)] {
			if ev.Axis == AxisRow {
				seenRows[ev.Index]++
			} else {
				seenCols[ev.Index]++
			}
		}
		for r := 0; r < rows; r++ {
			assert.Equal(t, 1, seenRows[r], "row %d in cycle %d", r, cycle)
		}
		for c := 0; c < cols; c++ {
			assert.Equal(t, 1, seenCols[c], "col %d in cycle %d", c, cycle)
		}
	}
}

func TestCyclesIndependentlyRandomized(t *testing.T) {
	const rows, cols, trials = 6, 6, 8
	s := newTestScheduler(rows, cols, trials, 42)
	s.Start(nil)
	events := runTrial(t, s)

	cycleLen := rows + cols
	identical := 0
	for cycle := 1; cycle < trials; cycle++ {
		same := true
		for i := 0; i < cycleLen; i++ {
			a := events[(cycle-1)*cycleLen+i]
			b := events[cycle*cycleLen+i]
			if a.Axis != b.Axis || a.Index != b.Index {
				same = false
				break
			}
		}
		if same {
			identical++
		}
	}
	// 12! orderings per cycle; consecutive identical cycles should not occur.
	assert.Zero(t, identical)
}

func TestContainsTargetAgainstCalibrationCell(t *testing.T) {
	s := newTestScheduler(6, 6, 1, 7)
	s.Start(&GridPosition{Row: 2, Col: 4})
	events := runTrial(t, s)

	for _, ev := range events {
		want := (ev.Axis == AxisRow && ev.Index == 2) || (ev.Axis == AxisCol && ev.Index == 4)
		assert.Equal(t, want, ev.ContainsTarget, "%s %d", ev.Axis, ev.Index)
	}
}

func TestContainsTargetFalseWithoutTarget(t *testing.T) {
	s := newTestScheduler(3, 3, 1, 7)
	s.Start(nil)
	for _, ev := range runTrial(t, s) {
		assert.False(t, ev.ContainsTarget)
	}
}

func TestEventTimestampIsObservedTick(t *testing.T) {
	s := newTestScheduler(2, 2, 1, 3)
	s.Start(nil)

	// Irregular tick spacing: the emitted timestamp must be the tick at
	// which the transition was observed, not a scheduled target time.
	ticks := []float64{5, 30, 111, 112, 190, 260, 340, 377, 420, 500, 600, 700, 800, 900}
	var got []float64
	for _, now := range ticks {
		if ev, _ := s.Advance(now); ev != nil {
			got = append(got, ev.Timestamp)
		}
	}
	require.NotEmpty(t, got)
	for _, ts := range got {
		found := false
		for _, tick := range ticks {
			if ts == tick {
				found = true
				break
			}
		}
		assert.True(t, found, "timestamp %v not an observed tick", ts)
	}
}

func TestTimingRespectsFlashAndGapDurations(t *testing.T) {
	s := newTestScheduler(2, 2, 1, 9)
	s.Start(nil)

	var onsets []float64
	clock := 0.0
	for {
		ev, done := s.Advance(clock)
		if ev != nil {
			onsets = append(onsets, ev.Timestamp)
		}
		if done {
			break
		}
		clock += 1.0 // 1ms tick resolution
	}
	require.Len(t, onsets, 4)
	for i := 1; i < len(onsets); i++ {
		// SOA = flash duration + inter-flash interval, observed at 1ms
		// resolution so each phase rounds up by at most one tick.
		soa := onsets[i] - onsets[i-1]
		assert.GreaterOrEqual(t, soa, 175.0)
		assert.LessOrEqual(t, soa, 178.0)
	}
}

func TestStopAbortsWithoutCompletion(t *testing.T) {
	s := newTestScheduler(6, 6, 2, 5)
	s.Start(nil)

	clock := 0.0
	for i := 0; i < 20; i++ {
		_, done := s.Advance(clock)
		require.False(t, done)
		clock += 16.7
	}
	s.Stop()
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Events())

	// A stopped scheduler ignores further ticks.
	ev, done := s.Advance(clock + 1000)
	assert.Nil(t, ev)
	assert.False(t, done)
}

func TestIdleSchedulerEmitsNothing(t *testing.T) {
	s := newTestScheduler(6, 6, 1, 5)
	ev, done := s.Advance(0)
	assert.Nil(t, ev)
	assert.False(t, done)
}
