package stimulus

import (
	"math/rand"
	"sync"
	"time"
)

// Axis distinguishes row flashes from column flashes.
type Axis int

const (
	// AxisRow flashes a whole row of the character matrix.
	AxisRow Axis = iota
	// AxisCol flashes a whole column.
	AxisCol
)

// String returns "row" or "col".
func (a Axis) String() string {
	if a == AxisRow {
		return "row"
	}
	return "col"
}

// GridPosition identifies one cell of the speller matrix.
type GridPosition struct {
	Row int
	Col int
}

// FlashEvent records one row/column flash. Timestamp is the presentation
// clock value at which the transition into the flash was observed on a
// scheduling tick, not the intended onset; epoch alignment needs the true
// instant.
type FlashEvent struct {
	Axis           Axis
	Index          int
	Timestamp      float64
	ContainsTarget bool
}

// SchedulerState is the observable state of the flash state machine.
type SchedulerState int

const (
	// StateIdle means no trial is running.
	StateIdle SchedulerState = iota
	// StateFlashOn means a row or column is currently lit.
	StateFlashOn
	// StateInterFlash means the blank gap between flashes.
	StateInterFlash
)

// Default timing constants in presentation-clock milliseconds. The SOA is
// FlashDurationMs + InterFlashIntervalMs.
const (
	DefaultFlashDurationMs      = 100.0
	DefaultInterFlashIntervalMs = 75.0
	DefaultTrialCount           = 10
)

// SchedulerConfig configures a flash scheduler.
type SchedulerConfig struct {
	Rows                 int
	Cols                 int
	TrialCount           int        // full row+col cycles per trial
	FlashDurationMs      float64    // flash visible
	InterFlashIntervalMs float64    // blank gap
	Rand                 *rand.Rand // injectable for deterministic tests
}

// Scheduler drives the Idle -> FlashOn -> InterFlash cycle across
// TrialCount shuffled passes over all rows and columns. It is tick-driven:
// callers feed it a monotonically increasing clock via Advance and act on
// the returned events. Mutation is expected from a single scheduling
// goroutine; the mutex only guards observers on other goroutines.
type Scheduler struct {
	mu  sync.Mutex
	cfg SchedulerConfig
	rng *rand.Rand

	state          SchedulerState
	lastTransition float64
	target         *GridPosition

	order      []flashSlot // current cycle, one slot per row and column
	posInCycle int
	cycle      int
	events     []FlashEvent
	armed      bool // Start called, first Advance pending
}

type flashSlot struct {
	axis  Axis
	index int
}

// NewScheduler creates a scheduler. Zero timing fields take the package
// defaults; a nil Rand gets a time-seeded source.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.TrialCount <= 0 {
		cfg.TrialCount = DefaultTrialCount
	}
	if cfg.FlashDurationMs <= 0 {
		cfg.FlashDurationMs = DefaultFlashDurationMs
	}
	if cfg.InterFlashIntervalMs <= 0 {
		cfg.InterFlashIntervalMs = DefaultInterFlashIntervalMs
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{cfg: cfg, rng: rng, state: StateIdle}
}

// Start arms a new trial. target is the attended cell during calibration;
// pass nil during free spelling, in which case every event carries
// ContainsTarget=false. The first flash fires on the next Advance tick.
func (s *Scheduler) Start(target *GridPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.cycle = 0
	s.posInCycle = 0
	s.events = s.events[:0]
	s.order = s.shuffledCycle()
	s.armed = true
	s.state = StateIdle
}

// Stop aborts the trial immediately. No completion is signalled and the
// aborted trial's events must not be treated as a usable trial.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	s.state = StateIdle
	s.events = s.events[:0]
}

// State returns the current state of the machine.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the ordered flash list accumulated for the trial. It is
// only complete once Advance has reported done=true.
func (s *Scheduler) Events() []FlashEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FlashEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Advance feeds the scheduler one tick of the presentation clock. It
// returns a FlashEvent exactly on each transition into FlashOn, and
// done=true exactly once when the final cycle completes, at which point the
// scheduler is back in Idle and Events holds the full trial.
func (s *Scheduler) Advance(now float64) (*FlashEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed {
		s.armed = false
		return s.beginFlash(now), false
	}

	switch s.state {
	case StateIdle:
		return nil, false

	case StateFlashOn:
		if now-s.lastTransition >= s.cfg.FlashDurationMs {
			s.state = StateInterFlash
			s.lastTransition = now
		}
		return nil, false

	case StateInterFlash:
		if now-s.lastTransition < s.cfg.InterFlashIntervalMs {
			return nil, false
		}
		s.posInCycle++
		if s.posInCycle >= len(s.order) {
			s.cycle++
			if s.cycle >= s.cfg.TrialCount {
				s.state = StateIdle
				return nil, true
			}
			s.posInCycle = 0
			s.order = s.shuffledCycle()
		}
		return s.beginFlash(now), false
	}
	return nil, false
}

// beginFlash transitions into FlashOn and records the emitted event.
// Caller holds the lock.
func (s *Scheduler) beginFlash(now float64) *FlashEvent {
	slot := s.order[s.posInCycle]
	ev := FlashEvent{
		Axis:           slot.axis,
		Index:          slot.index,
		Timestamp:      now,
		ContainsTarget: s.containsTarget(slot),
	}
	s.state = StateFlashOn
	s.lastTransition = now
	s.events = append(s.events, ev)
	return &ev
}

func (s *Scheduler) containsTarget(slot flashSlot) bool {
	if s.target == nil {
		return false
	}
	if slot.axis == AxisRow {
		return slot.index == s.target.Row
	}
	return slot.index == s.target.Col
}

// shuffledCycle builds a balanced permutation: each row and each column
// appears exactly once, order uniform via Fisher-Yates. Re-generated fresh
// for every cycle.
func (s *Scheduler) shuffledCycle() []flashSlot {
	slots := make([]flashSlot, 0, s.cfg.Rows+s.cfg.Cols)
	for r := 0; r < s.cfg.Rows; r++ {
		slots = append(slots, flashSlot{axis: AxisRow, index: r})
	}
	for c := 0; c < s.cfg.Cols; c++ {
		slots = append(slots, flashSlot{axis: AxisCol, index: c})
	}
	s.rng.Shuffle(len(slots), func(i, j int) {
		slots[i], slots[j] = slots[j], slots[i]
	})
	return slots
}
