package l2markers

import (
	"fmt"
	"math"
	"sync"

	"github.com/yelabb/phantomspell/internal/eeg/stimulus"
)

// ErrNotAligned is returned by AddMarker before any clock anchor has been
// set. Markers arriving before the first sample cannot be placed on the
// sample clock; callers log and drop them rather than failing the session.
var ErrNotAligned = fmt.Errorf("marker log not aligned to sample clock")

// Marker is a flash event translated into the sample-index domain of the
// ring buffer.
type Marker struct {
	Flash       stimulus.FlashEvent
	SampleIndex int64
}

// Anchor ties a presentation-clock instant to a sample index. It is set
// once per (re)connect, when the first sample arrives after a reset.
type Anchor struct {
	PresentationOrigin float64
	SampleOriginIndex  int64
}

// MarkerLog records flash markers aligned to the sample clock. Sample
// indices are monotonically non-decreasing in arrival order: a marker that
// would map before its predecessor is clamped to the predecessor's index,
// since flashes cannot be registered out of temporal order.
type MarkerLog struct {
	mu               sync.Mutex
	sampleIntervalMs float64
	anchor           *Anchor
	markers          []Marker
	lastIndex        int64
}

// NewMarkerLog creates an unaligned log for a stream at sampleRate Hz.
func NewMarkerLog(sampleRate float64) *MarkerLog {
	return &MarkerLog{sampleIntervalMs: 1000.0 / sampleRate}
}

// Align sets the clock anchor. Call when the first sample after a
// (re)connect is pushed, with its arrival timestamp and assigned index.
func (l *MarkerLog) Align(presentationOrigin float64, sampleOriginIndex int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.anchor = &Anchor{
		PresentationOrigin: presentationOrigin,
		SampleOriginIndex:  sampleOriginIndex,
	}
	l.lastIndex = sampleOriginIndex
}

// Aligned reports whether a clock anchor is set.
func (l *MarkerLog) Aligned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.anchor != nil
}

// Realign drops the anchor and all markers. Required whenever the sample
// rate or channel count changes: old sample indices are meaningless against
// a rebuilt ring.
func (l *MarkerLog) Realign(sampleRate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sampleIntervalMs = 1000.0 / sampleRate
	l.anchor = nil
	l.markers = l.markers[:0]
	l.lastIndex = 0
}

// AddMarker places a flash event on the sample clock and appends the
// resulting Marker. Returns ErrNotAligned when no anchor is set.
func (l *MarkerLog) AddMarker(ev stimulus.FlashEvent) (Marker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.anchor == nil {
		return Marker{}, fmt.Errorf("%w: flash %s %d at %.1f dropped",
			ErrNotAligned, ev.Axis, ev.Index, ev.Timestamp)
	}

	idx := l.anchor.SampleOriginIndex +
		int64(math.Round((ev.Timestamp-l.anchor.PresentationOrigin)/l.sampleIntervalMs))
	if idx < l.lastIndex {
		idx = l.lastIndex
	}
	l.lastIndex = idx

	m := Marker{Flash: ev, SampleIndex: idx}
	l.markers = append(l.markers, m)
	return m, nil
}

// Markers returns a copy of all recorded markers in arrival order.
func (l *MarkerLog) Markers() []Marker {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Marker, len(l.markers))
	copy(out, l.markers)
	return out
}

// Len returns the number of recorded markers.
func (l *MarkerLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.markers)
}

// Clear drops all markers but keeps the clock anchor. Used at trial
// boundaries once the trial's epochs have been extracted.
func (l *MarkerLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers = l.markers[:0]
	if l.anchor != nil {
		l.lastIndex = l.anchor.SampleOriginIndex
	}
}
