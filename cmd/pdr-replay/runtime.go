package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ubipos/internal/config"
	"ubipos/internal/event"
	"ubipos/internal/pdr"
	"ubipos/internal/replay"
	"ubipos/internal/sensor"
	"ubipos/internal/sim"
	"ubipos/internal/trace"
	"ubipos/internal/udp"
)

type runtime struct {
	cfg     config.Config
	session string
	engine  *pdr.Engine

	sender   *udp.Sender
	sink     *udp.EventSink
	recorder *replay.Writer
	trace    *trace.Recorder

	// sleeper paces replay; nil means real time.
	sleeper replay.Sleeper
}

func newRuntime(cfg config.Config) (*runtime, error) {
	ec, err := cfg.ToEngineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := pdr.New(ec)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, session: uuid.NewString(), engine: engine}
	if !cfg.Input.Replay.Realtime {
		rt.sleeper = replay.NoSleep{}
	}

	if cfg.Output.LogEvents {
		l := &eventLogger{}
		engine.Heading().AddListener(l)
		engine.Steps().AddListener(l)
		engine.AddFloorListener(l)
		engine.AddContextListener(l)
	}

	if cfg.Output.UDP.Enable {
		sender, err := udp.NewSender(cfg.Output.UDP.Dest)
		if err != nil {
			return nil, fmt.Errorf("udp sender init failed: %w", err)
		}
		rt.sender = sender
		rt.sink = udp.NewEventSink(sender, rt.session)
		engine.Heading().AddListener(rt.sink)
		engine.Steps().AddListener(rt.sink)
		engine.AddFloorListener(rt.sink)
		engine.AddContextListener(rt.sink)
	}

	if cfg.Output.Plot.Enable {
		rt.trace = trace.NewRecorder()
		engine.Heading().AddListener(rt.trace)
		engine.Steps().AddListener(rt.trace)
	}

	if cfg.Output.Record.Enable {
		w, err := replay.CreateWriter(cfg.Output.Record.Path, rt.session)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("record init failed: %w", err)
		}
		rt.recorder = w
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			log.Printf("record close failed: %v", err)
		}
	}
	if rt.sender != nil {
		_ = rt.sender.Close()
	}
}

func (rt *runtime) Run(ctx context.Context) error {
	switch rt.cfg.Input.Mode {
	case "replay":
		return runReplay(ctx, rt.cfg, rt.sleeper, rt.process)
	default:
		samples, err := simSamples(rt.cfg)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := rt.process(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// Finish writes the outputs that summarize the whole run.
func (rt *runtime) Finish() error {
	if rt.trace == nil {
		return nil
	}
	if err := rt.trace.Save(rt.cfg.Output.Plot.Path); err != nil {
		return err
	}
	_, steps := rt.trace.Counts()
	log.Printf("plot written to %s (%d steps, %.1fm)", rt.cfg.Output.Plot.Path, steps, rt.trace.Distance())
	return nil
}

func (rt *runtime) process(s sensor.Sample) error {
	if rt.recorder != nil {
		if err := rt.recorder.WriteSample(s); err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}
	rt.engine.Process(s)
	return nil
}

func (rt *runtime) logStats() {
	st := rt.engine.Stats()
	log.Printf("samples=%d (acc=%d gyro=%d mag=%d ignored=%d)",
		st.Samples(), st.Accelerometer, st.Gyroscope, st.Magnetometer, st.Ignored)
	log.Printf("headings=%d steps=%d candidates=%d resets=%d",
		st.Headings, st.Steps, st.Candidates, st.Resets)
	if h, ok := rt.engine.Heading().Heading(); ok {
		log.Printf("final heading=%.1fdeg", degrees(h))
	}
	if rt.sink != nil {
		sent, failed := rt.sink.Stats()
		log.Printf("udp dest=%s sent=%d failed=%d", rt.sender.Dest(), sent, failed)
	}
}

// simSamples renders the configured route, or the steady walk when no route
// script is set.
func simSamples(cfg config.Config) ([]sensor.Sample, error) {
	walk := cfg.SimWalk()
	path := strings.TrimSpace(cfg.Input.Sim.Route)
	if path == "" {
		return walk.Samples(0, cfg.Input.Sim.Duration), nil
	}
	script, err := sim.LoadRouteScript(path)
	if err != nil {
		return nil, fmt.Errorf("route load failed: %w", err)
	}
	route, err := sim.NewRoute(script)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", path, err)
	}
	return route.Samples(walk, 0), nil
}

// runReplay plays the configured log through cb, stopping at the first
// callback error or when ctx is done.
func runReplay(ctx context.Context, cfg config.Config, sleeper replay.Sleeper, cb func(sensor.Sample) error) error {
	rc := cfg.Input.Replay
	recs, session, err := replay.ReadFile(rc.Path)
	if err != nil {
		return err
	}
	if session != "" {
		log.Printf("replaying %s (recorded session=%s, %d records)", rc.Path, session, len(recs))
	}
	return replay.Play(recs, rc.Speed, rc.Loop, sleeper, func(s sensor.Sample) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return cb(s)
	})
}

// headingLogStep is how far the heading must move before it is logged again.
const headingLogStep = 5 * math.Pi / 180

type eventLogger struct {
	mu       sync.Mutex
	lastHead float64
	haveHead bool
}

func (l *eventLogger) OnHeadingChange(h event.Heading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.haveHead && math.Abs(math.Remainder(h.Radians-l.lastHead, 2*math.Pi)) < headingLogStep {
		return
	}
	l.lastHead = h.Radians
	l.haveHead = true
	log.Printf("heading t=%d heading=%.1fdeg", h.Timestamp, degrees(h.Radians))
}

func (*eventLogger) OnStep(s event.Step) {
	log.Printf("step t=%d duration=%.3fs length=%.2fm", s.Timestamp, s.Duration, s.Length)
}

func (*eventLogger) OnFloor(f event.Floor) {
	log.Printf("floor t=%d floor=%d", f.Timestamp, f.Floor)
}

func (*eventLogger) OnContext(c event.Context) {
	log.Printf("context type=%s pdr=%.2f wifi=%.2f magnetic=%.2f ble=%.2f gps=%.2f",
		c.Type, c.PDR, c.WiFi, c.Magnetic, c.BLE, c.GPS)
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
