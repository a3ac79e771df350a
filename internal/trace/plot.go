// Package trace collects heading and step events and renders them as a plot.
package trace

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"ubipos/internal/event"
)

var (
	headingColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	stepColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Recorder is a heading and step listener. Times are seconds since the first
// event it saw.
type Recorder struct {
	mu sync.Mutex

	haveOrigin bool
	origin     int64

	haveHeading bool
	lastHeading float64 // degrees

	headings plotter.XYs
	steps    plotter.XYs
	lengths  []float64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnHeadingChange(h event.Heading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deg := h.Radians * 180 / math.Pi
	r.headings = append(r.headings, plotter.XY{X: r.seconds(h.Timestamp), Y: deg})
	r.lastHeading = deg
	r.haveHeading = true
}

// OnStep marks the step on the heading trace at the heading current when it
// was detected.
func (r *Recorder) OnStep(s event.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	y := 0.0
	if r.haveHeading {
		y = r.lastHeading
	}
	r.steps = append(r.steps, plotter.XY{X: r.seconds(s.Timestamp), Y: y})
	r.lengths = append(r.lengths, s.Length)
}

func (r *Recorder) seconds(ts int64) float64 {
	if !r.haveOrigin {
		r.origin = ts
		r.haveOrigin = true
	}
	return time.Duration(ts - r.origin).Seconds()
}

// Counts returns how many headings and steps were recorded.
func (r *Recorder) Counts() (headings, steps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.headings), len(r.steps)
}

// Distance is the sum of the recorded step lengths in meters.
func (r *Recorder) Distance() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := 0.0
	for _, l := range r.lengths {
		d += l
	}
	return d
}

// Save renders the trace. The image format follows the file extension
// (.png, .svg, .pdf, ...).
func (r *Recorder) Save(path string) error {
	r.mu.Lock()
	headings := append(plotter.XYs(nil), r.headings...)
	steps := append(plotter.XYs(nil), r.steps...)
	r.mu.Unlock()

	if len(headings) == 0 {
		return fmt.Errorf("trace: no headings recorded")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trace: failed to create output dir: %w", err)
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Heading (%d steps)", len(steps))
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Heading (deg)"
	p.Y.Min = -180
	p.Y.Max = 180
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(headings)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	line.Color = headingColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("heading", line)

	if len(steps) > 0 {
		sc, err := plotter.NewScatter(steps)
		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}
		sc.GlyphStyle.Color = stepColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("step", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("trace: save %s: %w", path, err)
	}
	return nil
}
