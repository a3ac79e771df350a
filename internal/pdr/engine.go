// Package pdr wires the fusion core together: one heading estimator and one
// step detector fed from a single sample stream, plus the floor and context
// broadcasts used by detectors living outside this module.
package pdr

import (
	"fmt"
	"sync"

	"ubipos/internal/event"
	"ubipos/internal/heading"
	"ubipos/internal/sensor"
	"ubipos/internal/step"
)

type Config struct {
	Heading heading.Config
	Step    step.Config
}

func DefaultConfig() Config {
	return Config{
		Heading: heading.DefaultConfig(),
		Step:    step.DefaultConfig(),
	}
}

// Stats counts what the engine has seen since construction.
type Stats struct {
	Accelerometer int
	Gyroscope     int
	Magnetometer  int
	Ignored       int

	Headings int
	Steps    int

	// Candidates is the number of crossovers the step detector evaluated.
	Candidates int
	// Resets is the number of times the heading filter diverged.
	Resets int
}

func (s Stats) Samples() int {
	return s.Accelerometer + s.Gyroscope + s.Magnetometer + s.Ignored
}

// Result is what a single sample produced.
type Result struct {
	Heading    event.Heading
	HasHeading bool
	Step       event.Step
	HasStep    bool
}

type Engine struct {
	heading *heading.Estimator
	steps   *step.Detector

	floors   event.Broadcaster[event.Floor]
	contexts event.Broadcaster[event.Context]

	mu    sync.Mutex
	stats Stats
}

func New(cfg Config) (*Engine, error) {
	h, err := heading.New(cfg.Heading)
	if err != nil {
		return nil, fmt.Errorf("pdr: %w", err)
	}
	d, err := step.NewDetector(cfg.Step)
	if err != nil {
		return nil, fmt.Errorf("pdr: %w", err)
	}
	return &Engine{heading: h, steps: d}, nil
}

// Heading exposes the estimator for listener registration and queries.
func (e *Engine) Heading() *heading.Estimator { return e.heading }

// Steps exposes the detector for listener registration and queries.
func (e *Engine) Steps() *step.Detector { return e.steps }

func (e *Engine) Floors() *event.Broadcaster[event.Floor]     { return &e.floors }
func (e *Engine) Contexts() *event.Broadcaster[event.Context] { return &e.contexts }

func (e *Engine) AddFloorListener(l event.FloorListener) event.ID {
	if l == nil {
		return 0
	}
	return e.floors.Register(l.OnFloor)
}

func (e *Engine) AddContextListener(l event.ContextListener) event.ID {
	if l == nil {
		return 0
	}
	return e.contexts.Register(l.OnContext)
}

// PublishFloor delivers a floor change detected elsewhere to the floor
// listeners.
func (e *Engine) PublishFloor(f event.Floor) { e.floors.Notify(f) }

// PublishContext delivers a location context detected elsewhere to the
// context listeners.
func (e *Engine) PublishContext(c event.Context) { e.contexts.Notify(c) }

// Process routes one sample: accelerometer samples go to both the heading
// estimator and the step detector, gyroscope and magnetometer samples to the
// heading estimator only. Other kinds are counted and dropped.
func (e *Engine) Process(s sensor.Sample) Result {
	var r Result
	switch s.Kind {
	case sensor.Accelerometer:
		r.Heading, r.HasHeading = e.heading.Update(s)
		r.Step, r.HasStep = e.steps.Update(s)
	case sensor.Gyroscope, sensor.Magnetometer:
		r.Heading, r.HasHeading = e.heading.Update(s)
	}

	e.mu.Lock()
	switch s.Kind {
	case sensor.Accelerometer:
		e.stats.Accelerometer++
	case sensor.Gyroscope:
		e.stats.Gyroscope++
	case sensor.Magnetometer:
		e.stats.Magnetometer++
	default:
		e.stats.Ignored++
	}
	if r.HasHeading {
		e.stats.Headings++
	}
	if r.HasStep {
		e.stats.Steps++
	}
	e.mu.Unlock()
	return r
}

// ProcessAll feeds samples in order.
func (e *Engine) ProcessAll(samples []sensor.Sample) {
	for _, s := range samples {
		e.Process(s)
	}
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	st := e.stats
	e.mu.Unlock()
	st.Candidates, _ = e.steps.Stats()
	st.Resets = e.heading.Resets()
	return st
}

// Reset clears both detectors and the sample counters. The divergence count
// in Stats.Resets is kept. Listeners are kept.
func (e *Engine) Reset() {
	e.heading.Reset()
	e.steps.Reset()
	e.mu.Lock()
	e.stats = Stats{}
	e.mu.Unlock()
}
