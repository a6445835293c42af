package quality

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// DefaultWindowSize is the FFT window length in samples. Power of two for
// the FFT; at 250Hz this covers ~2 seconds.
const DefaultWindowSize = 512

// ChannelStats is one channel's quality snapshot.
type ChannelStats struct {
	RMS        float64 `json:"rms"`
	MainsRatio float64 `json:"mains_ratio"` // spectral power near mains / total power
}

// Config describes the stream the monitor observes.
type Config struct {
	SampleRate   float64
	ChannelCount int
	MainsHz      float64 // 50 or 60; 0 defaults to 50
	WindowSize   int     // samples per channel, power of two
}

// Monitor keeps a rolling window of recent samples per channel and derives
// quality statistics on demand.
type Monitor struct {
	mu     sync.Mutex
	cfg    Config
	window [][]float64 // per channel ring of recent values
	pos    int
	filled bool
	hann   []float64
}

// NewMonitor creates a monitor for the configured stream geometry.
func NewMonitor(cfg Config) *Monitor {
	if cfg.MainsHz <= 0 {
		cfg.MainsHz = 50
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	m := &Monitor{cfg: cfg}
	m.window = make([][]float64, cfg.ChannelCount)
	for c := range m.window {
		m.window[c] = make([]float64, cfg.WindowSize)
	}
	// Hann window to limit leakage into the mains bins.
	m.hann = make([]float64, cfg.WindowSize)
	for i := range m.hann {
		m.hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(cfg.WindowSize-1)))
	}
	return m
}

// Observe appends one multichannel sample to the rolling window.
func (m *Monitor) Observe(channels []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.window)
	if len(channels) < n {
		n = len(channels)
	}
	for c := 0; c < n; c++ {
		m.window[c][m.pos] = float64(channels[c])
	}
	m.pos++
	if m.pos >= m.cfg.WindowSize {
		m.pos = 0
		m.filled = true
	}
}

// Ready reports whether a full window has been observed.
func (m *Monitor) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filled
}

// Reset discards the rolling window, e.g. after a stream reconfigure.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.window {
		for i := range m.window[c] {
			m.window[c][i] = 0
		}
	}
	m.pos = 0
	m.filled = false
}

// Snapshot computes per-channel stats over the current window. Channels
// with no full window yet report zeros.
func (m *Monitor) Snapshot() []ChannelStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ChannelStats, len(m.window))
	if !m.filled {
		return stats
	}

	binWidth := m.cfg.SampleRate / float64(m.cfg.WindowSize)
	loBin := int((m.cfg.MainsHz - 2.0) / binWidth)
	hiBin := int(math.Ceil((m.cfg.MainsHz + 2.0) / binWidth))

	for c, ring := range m.window {
		// Unroll the ring into time order and apply the Hann window.
		input := make([]complex128, m.cfg.WindowSize)
		var sumSq float64
		for i := 0; i < m.cfg.WindowSize; i++ {
			v := ring[(m.pos+i)%m.cfg.WindowSize]
			sumSq += v * v
			input[i] = complex(v*m.hann[i], 0)
		}
		stats[c].RMS = math.Sqrt(sumSq / float64(m.cfg.WindowSize))

		spectrum := fft.FFT(input)
		var total, mains float64
		for bin := 1; bin < len(spectrum)/2; bin++ {
			p := cmplx.Abs(spectrum[bin])
			p *= p
			total += p
			if bin >= loBin && bin <= hiBin {
				mains += p
			}
		}
		if total > 0 {
			stats[c].MainsRatio = mains / total
		}
	}
	return stats
}
