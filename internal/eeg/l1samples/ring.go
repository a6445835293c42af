package l1samples

import (
	"fmt"
	"math"
	"sync"
)

// ErrInsufficientData is returned by ExtractWindow when the requested range
// is not (or no longer) available in the ring. Callers are expected to skip
// the extraction and move on; the stream will have advanced past the window
// by the time a retry could run.
var ErrInsufficientData = fmt.Errorf("insufficient data in sample ring")

// Sample is one multichannel observation from the acquisition stream.
// Channels is copied on Push, so callers may reuse their slice.
type Sample struct {
	Timestamp float64   // arrival timestamp on the stream clock (ms)
	Channels  []float32 // one value per channel
}

// Config describes the stream geometry the ring is sized for.
type Config struct {
	SampleRate    float64 // samples per second
	ChannelCount  int     // fixed channel count C
	WindowSeconds float64 // seconds of history to retain
}

// capacity returns the ring capacity implied by the config.
func (c Config) capacity() int {
	n := int(math.Ceil(c.WindowSeconds * c.SampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

// SampleRing is a fixed-capacity circular buffer of multichannel samples.
// Push overwrites the oldest retained sample once full (drop-oldest, no
// backpressure). Sample indices are monotonic from zero and survive
// eviction: index i always refers to the i-th sample ever pushed, whether
// or not it is still retained.
type SampleRing struct {
	mu       sync.Mutex
	cfg      Config
	data     [][]float32 // ring storage, len == capacity
	stamps   []float64   // arrival timestamps, parallel to data
	capacity int
	head     int64 // total samples ever pushed; next sample gets index head
}

// NewSampleRing creates a ring sized to cfg.WindowSeconds of history.
func NewSampleRing(cfg Config) *SampleRing {
	r := &SampleRing{}
	r.rebuildLocked(cfg)
	return r
}

func (r *SampleRing) rebuildLocked(cfg Config) {
	r.cfg = cfg
	r.capacity = cfg.capacity()
	r.data = make([][]float32, r.capacity)
	r.stamps = make([]float64, r.capacity)
	r.head = 0
}

// Push appends a sample, evicting the oldest retained sample if the ring is
// full. Channel data is copied. Returns the index assigned to the sample.
func (r *SampleRing) Push(s Sample) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := int(r.head % int64(r.capacity))
	if r.data[slot] == nil || len(r.data[slot]) != len(s.Channels) {
		r.data[slot] = make([]float32, len(s.Channels))
	}
	copy(r.data[slot], s.Channels)
	r.stamps[slot] = s.Timestamp

	idx := r.head
	r.head++
	return idx
}

// Head returns the index the next pushed sample will receive (equivalently,
// the total number of samples ever pushed).
func (r *SampleRing) Head() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head
}

// Oldest returns the lowest sample index still retained. With an empty ring
// this is zero.
func (r *SampleRing) Oldest() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oldestLocked()
}

func (r *SampleRing) oldestLocked() int64 {
	if r.head <= int64(r.capacity) {
		return 0
	}
	return r.head - int64(r.capacity)
}

// Count returns the number of samples currently retained.
func (r *SampleRing) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head < int64(r.capacity) {
		return int(r.head)
	}
	return r.capacity
}

// Capacity returns the ring capacity in samples.
func (r *SampleRing) Capacity() int { return r.capacity }

// ChannelCount returns the configured channel count.
func (r *SampleRing) ChannelCount() int { return r.cfg.ChannelCount }

// SampleRate returns the configured sample rate.
func (r *SampleRing) SampleRate() float64 { return r.cfg.SampleRate }

// ExtractWindow returns a length x C copy of the samples in
// [start, start+length). It fails with ErrInsufficientData when start is
// negative, when the range extends past the most recently pushed sample, or
// when start precedes the oldest retained index (already evicted). A failed
// extraction has no side effects.
func (r *SampleRing) ExtractWindow(start int64, length int) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if length <= 0 {
		return nil, fmt.Errorf("%w: non-positive window length %d", ErrInsufficientData, length)
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: negative start index %d", ErrInsufficientData, start)
	}
	if start+int64(length) > r.head {
		return nil, fmt.Errorf("%w: window [%d,%d) extends past head %d",
			ErrInsufficientData, start, start+int64(length), r.head)
	}
	if start < r.oldestLocked() {
		return nil, fmt.Errorf("%w: start index %d evicted (oldest retained %d)",
			ErrInsufficientData, start, r.oldestLocked())
	}

	out := make([][]float32, length)
	for i := 0; i < length; i++ {
		slot := int((start + int64(i)) % int64(r.capacity))
		row := make([]float32, len(r.data[slot]))
		copy(row, r.data[slot])
		out[i] = row
	}
	return out, nil
}

// Timestamp returns the arrival timestamp recorded for a retained sample
// index, or false when the index has been evicted or not yet pushed.
func (r *SampleRing) Timestamp(index int64) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < r.oldestLocked() || index >= r.head {
		return 0, false
	}
	return r.stamps[int(index%int64(r.capacity))], true
}

// Rebuild discards all contents and resizes the ring for a new stream
// geometry. Indices restart from zero; any marker alignment derived from
// the previous geometry is invalid afterwards.
func (r *SampleRing) Rebuild(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked(cfg)
}
