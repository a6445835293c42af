package monitor

import (
	"fmt"
	"image/color"
	"io"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/yelabb/phantomspell/internal/eeg/l3epochs"
)

// ERPPlotter accumulates per-label grand-average waveforms across every
// extracted epoch and renders them for the web monitor. A usable ERP plot
// (a clear bump on the Target trace, a flat NonTarget trace) is the
// quickest visual check that calibration produced a signal worth training
// on.
type ERPPlotter struct {
	mu            sync.Mutex
	sampleRate    float64
	preStimulusMs float64

	length int // samples per epoch, fixed by the first epoch seen
	sum    map[l3epochs.Label][]float64
	count  map[l3epochs.Label]int
}

// NewERPPlotter creates a plotter. sampleRate and preStimulusMs place the
// x axis relative to flash onset.
func NewERPPlotter(sampleRate, preStimulusMs float64) *ERPPlotter {
	return &ERPPlotter{
		sampleRate:    sampleRate,
		preStimulusMs: preStimulusMs,
		sum:           make(map[l3epochs.Label][]float64),
		count:         make(map[l3epochs.Label]int),
	}
}

// AddEpochs folds a batch of epochs into the running averages. Each
// epoch's channels are averaged into a single waveform; epochs whose
// length differs from the first one seen (after a reconfigure) are
// ignored.
func (e *ERPPlotter) AddEpochs(epochs []l3epochs.Epoch) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, epoch := range epochs {
		if len(epoch.Data) == 0 {
			continue
		}
		if e.length == 0 {
			e.length = len(epoch.Data)
		}
		if len(epoch.Data) != e.length {
			continue
		}

		acc := e.sum[epoch.Label]
		if acc == nil {
			acc = make([]float64, e.length)
			e.sum[epoch.Label] = acc
		}
		for i, frame := range epoch.Data {
			var v float64
			for _, ch := range frame {
				v += float64(ch)
			}
			acc[i] += v / float64(len(frame))
		}
		e.count[epoch.Label]++
	}
}

// Counts returns how many epochs of each label have been accumulated.
func (e *ERPPlotter) Counts() (target, nonTarget int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count[l3epochs.Target], e.count[l3epochs.NonTarget]
}

// Reset discards all accumulated waveforms.
func (e *ERPPlotter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.length = 0
	e.sum = make(map[l3epochs.Label][]float64)
	e.count = make(map[l3epochs.Label]int)
}

// average returns the mean waveform for a label, nil if none accumulated.
func (e *ERPPlotter) average(label l3epochs.Label) []float64 {
	acc := e.sum[label]
	n := e.count[label]
	if acc == nil || n == 0 {
		return nil
	}
	avg := make([]float64, len(acc))
	for i, v := range acc {
		avg[i] = v / float64(n)
	}
	return avg
}

// RenderPNG writes the averaged Target and NonTarget waveforms as a PNG.
func (e *ERPPlotter) RenderPNG(w io.Writer) error {
	e.mu.Lock()
	target := e.average(l3epochs.Target)
	nonTarget := e.average(l3epochs.NonTarget)
	nTarget, nNonTarget := e.count[l3epochs.Target], e.count[l3epochs.NonTarget]
	e.mu.Unlock()

	if target == nil && nonTarget == nil {
		return fmt.Errorf("no epochs accumulated yet")
	}

	p := plot.New()
	p.Title.Text = "Average ERP by flash label"
	p.X.Label.Text = "Time from flash onset (ms)"
	p.Y.Label.Text = "Amplitude (channel mean)"
	p.Legend.Top = true

	msPerSample := 1000 / e.sampleRate
	toPoints := func(wave []float64) plotter.XYs {
		pts := make(plotter.XYs, len(wave))
		for i, v := range wave {
			pts[i] = plotter.XY{
				X: float64(i)*msPerSample - e.preStimulusMs,
				Y: v,
			}
		}
		return pts
	}

	if nonTarget != nil {
		line, err := plotter.NewLine(toPoints(nonTarget))
		if err != nil {
			return fmt.Errorf("nontarget line: %w", err)
		}
		line.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("NonTarget (n=%d)", nNonTarget), line)
	}
	if target != nil {
		line, err := plotter.NewLine(toPoints(target))
		if err != nil {
			return fmt.Errorf("target line: %w", err)
		}
		line.Color = color.RGBA{R: 200, G: 40, B: 40, A: 255}
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("Target (n=%d)", nTarget), line)
	}

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render erp plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
