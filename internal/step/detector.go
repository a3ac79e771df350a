// Package step segments the accelerometer magnitude into steps.
//
// A short and a long time-weighted moving average follow the magnitude. Each
// time the short average rises above the long one a candidate step closes;
// it is reported only if it oscillated strongly enough, lasted a plausible
// time, and both rose above and fell below the long-term baseline.
package step

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ubipos/internal/event"
	"ubipos/internal/monitoring"
	"ubipos/internal/sensor"
	"ubipos/internal/window"
)

type Config struct {
	ShortWindow time.Duration
	LongWindow  time.Duration

	// EnergyThreshold is the minimum accumulated (short−long)²·dt.
	EnergyThreshold float64

	MinDuration time.Duration
	MaxDuration time.Duration

	// MinPeakRise is how far the peak must exceed the long average, and
	// MinValleyDrop how far the valley must fall below it (m/s²).
	MinPeakRise   float64
	MinValleyDrop float64

	Length LengthModel
}

func DefaultConfig() Config {
	return Config{
		ShortWindow:     200 * time.Millisecond,
		LongWindow:      1 * time.Second,
		EnergyThreshold: 0.025,
		MinDuration:     330 * time.Millisecond,
		MaxDuration:     2 * time.Second,
		MinPeakRise:     0.2,
		MinValleyDrop:   0.7,
		Length:          BinaryLinear{},
	}
}

func (c Config) Validate() error {
	if c.ShortWindow <= 0 || c.LongWindow <= 0 {
		return fmt.Errorf("step: windows must be > 0, got short=%s long=%s", c.ShortWindow, c.LongWindow)
	}
	if c.ShortWindow >= c.LongWindow {
		return fmt.Errorf("step: short window %s must be shorter than long window %s", c.ShortWindow, c.LongWindow)
	}
	if c.EnergyThreshold < 0 {
		return fmt.Errorf("step: energy threshold must be >= 0, got %v", c.EnergyThreshold)
	}
	if c.MinDuration < 0 || c.MaxDuration <= 0 || c.MinDuration > c.MaxDuration {
		return fmt.Errorf("step: invalid duration bounds [%s, %s]", c.MinDuration, c.MaxDuration)
	}
	if c.MinPeakRise < 0 || c.MinValleyDrop < 0 {
		return fmt.Errorf("step: amplitude gates must be >= 0, got rise=%v drop=%v", c.MinPeakRise, c.MinValleyDrop)
	}
	if c.Length == nil {
		return errors.New("step: length model is nil")
	}
	return nil
}

// Detector is safe for concurrent use. Listeners run outside the state lock,
// in the order steps were detected.
type Detector struct {
	cfg Config

	mu sync.Mutex

	short *window.TimeWeighted
	long  *window.TimeWeighted
	win   *Window

	haveLast bool
	lastTs   int64
	lastMag  float64

	// aboveLong is the last short>long state; a false→true edge is a step
	// boundary.
	aboveLong bool

	candidates int
	steps      int
	dropped    int

	out event.Emitter[event.Step]
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	short, err := window.New(cfg.ShortWindow)
	if err != nil {
		return nil, fmt.Errorf("step: %w", err)
	}
	long, err := window.New(cfg.LongWindow)
	if err != nil {
		return nil, fmt.Errorf("step: %w", err)
	}
	return &Detector{
		cfg:       cfg,
		short:     short,
		long:      long,
		win:       NewWindow(),
		aboveLong: true,
	}, nil
}

func (d *Detector) AddListener(l event.StepListener) event.ID {
	if l == nil {
		return 0
	}
	return d.out.Register(l.OnStep)
}

func (d *Detector) RemoveListener(id event.ID) bool {
	return d.out.Unregister(id)
}

func (d *Detector) ClearListeners() {
	d.out.Clear()
}

// Update feeds one sample. Only accelerometer samples are used; a validated
// step is returned with ok=true and delivered to the listeners. Samples with a
// NaN or infinite component are dropped and counted, see Dropped.
func (d *Detector) Update(s sensor.Sample) (event.Step, bool) {
	if s.Kind != sensor.Accelerometer {
		return event.Step{}, false
	}
	d.mu.Lock()
	if !s.Finite() {
		d.dropNonFinite(s.Timestamp)
		d.mu.Unlock()
		return event.Step{}, false
	}
	st, ok := d.process(s)
	if ok {
		d.out.Enqueue(st)
	}
	d.mu.Unlock()

	d.out.Drain()
	return st, ok
}

// dropNonFinite discards a sample that would poison the running averages.
// The previous finite sample stays the reference for the next interval.
func (d *Detector) dropNonFinite(ts int64) {
	d.dropped++
	if d.dropped == 1 || d.dropped%100 == 0 {
		monitoring.Logf("step: dropped non-finite accelerometer sample t=%d (total %d)", ts, d.dropped)
	}
}

func (d *Detector) process(s sensor.Sample) (event.Step, bool) {
	mag := s.Magnitude()
	if !d.haveLast {
		d.haveLast = true
		d.lastTs = s.Timestamp
		d.lastMag = mag
		return event.Step{}, false
	}
	dt := sensor.Interval(d.lastTs, s.Timestamp)
	prevMag := d.lastMag
	d.lastTs = s.Timestamp
	d.lastMag = mag
	if dt <= 0 {
		return event.Step{}, false
	}

	value := (prevMag + mag) / 2
	d.short.Add(dt, value)
	d.long.Add(dt, value)
	shortAvg := d.short.Average()
	longAvg := d.long.Average()

	above := shortAvg > longAvg
	boundary := above && !d.aboveLong
	d.aboveLong = above

	d.win.Add(dt, value, shortAvg-longAvg)
	if !boundary {
		return event.Step{}, false
	}

	d.candidates++
	st, ok := d.validate(s.Timestamp, longAvg)
	d.win.Reset()
	if ok {
		d.steps++
	}
	return st, ok
}

func (d *Detector) validate(ts int64, longAvg float64) (event.Step, bool) {
	w := d.win
	dur := w.Duration()
	switch {
	case w.Energy() < d.cfg.EnergyThreshold:
		return event.Step{}, false
	case dur < d.cfg.MinDuration.Seconds() || dur > d.cfg.MaxDuration.Seconds():
		return event.Step{}, false
	case w.Peak()-longAvg <= d.cfg.MinPeakRise:
		return event.Step{}, false
	case longAvg-w.Valley() <= d.cfg.MinValleyDrop:
		return event.Step{}, false
	}
	return event.Step{
		Timestamp: ts,
		Duration:  dur,
		Length:    d.cfg.Length.StepLength(1/dur, w.Variance()),
	}, true
}

// Stats reports how many crossovers closed a candidate and how many of them
// passed validation.
func (d *Detector) Stats() (candidates, steps int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.candidates, d.steps
}

// Dropped reports how many non-finite accelerometer samples were discarded.
func (d *Detector) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Reset forgets all signal history. Listeners are kept.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.short.Reset()
	d.long.Reset()
	d.win.Reset()
	d.haveLast = false
	d.aboveLong = true
	d.candidates = 0
	d.steps = 0
	d.dropped = 0
}
