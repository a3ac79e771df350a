// Package heading estimates the device heading with a complementary filter.
//
// The estimator keeps a world→device rotation matrix. Gyroscope samples
// integrate it (low noise, drifts), accelerometer samples pull its predicted
// gravity toward the measured one, and magnetometer samples pull its predicted
// north toward the horizontal part of the measured field. Each correction is
// damped so the gyro estimate dominates between references.
package heading

import (
	"fmt"
	"math"
	"sync"
	"time"

	"ubipos/internal/event"
	"ubipos/internal/linalg"
	"ubipos/internal/monitoring"
	"ubipos/internal/sensor"
	"ubipos/internal/window"
)

type Config struct {
	// AccWindow is the span of the per-axis averages used as the gravity
	// reference.
	AccWindow time.Duration

	// AccFactor is the share of the gravity correction applied per sample.
	AccFactor float64

	// MagFactor is the share of the north correction applied per sample once
	// fast alignment is over.
	MagFactor float64

	// FastMagAlignments is how many magnetometer samples apply the full
	// correction after construction or a reset.
	FastMagAlignments int
}

func DefaultConfig() Config {
	return Config{
		AccWindow:         500 * time.Millisecond,
		AccFactor:         0.1,
		MagFactor:         0.1,
		FastMagAlignments: 10,
	}
}

func (c Config) Validate() error {
	if c.AccWindow <= 0 {
		return fmt.Errorf("heading: acc window must be > 0, got %s", c.AccWindow)
	}
	if c.AccFactor <= 0 || c.AccFactor > 1 {
		return fmt.Errorf("heading: acc factor must be in (0,1], got %v", c.AccFactor)
	}
	if c.MagFactor <= 0 || c.MagFactor > 1 {
		return fmt.Errorf("heading: mag factor must be in (0,1], got %v", c.MagFactor)
	}
	if c.FastMagAlignments < 0 {
		return fmt.Errorf("heading: fast mag alignments must be >= 0, got %d", c.FastMagAlignments)
	}
	return nil
}

// Estimator is safe for concurrent use; samples of different kinds may arrive
// from different goroutines. Listeners run outside the state lock, one event
// per processed sample, in sample order.
type Estimator struct {
	cfg Config

	mu sync.Mutex

	// worldBase maps world coordinates (x east, y north, z up) into device
	// coordinates.
	worldBase    linalg.Mat3
	fastMagAlign int

	haveAcc   bool
	lastAccTs int64
	lastAcc   linalg.Vec3
	accWin    [3]*window.TimeWeighted

	haveGyro   bool
	lastGyroTs int64
	lastGyro   linalg.Vec3

	heading     float64
	haveHeading bool
	resets      int

	out event.Emitter[event.Heading]
}

func New(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{cfg: cfg}
	for i := range e.accWin {
		w, err := window.New(cfg.AccWindow)
		if err != nil {
			return nil, fmt.Errorf("heading: %w", err)
		}
		e.accWin[i] = w
	}
	e.resetLocked()
	return e, nil
}

func (e *Estimator) AddListener(l event.HeadingListener) event.ID {
	if l == nil {
		return 0
	}
	return e.out.Register(l.OnHeadingChange)
}

func (e *Estimator) RemoveListener(id event.ID) bool {
	return e.out.Unregister(id)
}

func (e *Estimator) ClearListeners() {
	e.out.Clear()
}

// Update feeds one sample and returns the resulting heading. Exactly one
// heading is produced per accelerometer, gyroscope or magnetometer sample;
// ok is false for other kinds and when the filter diverged and was reset.
func (e *Estimator) Update(s sensor.Sample) (event.Heading, bool) {
	e.mu.Lock()
	switch s.Kind {
	case sensor.Accelerometer:
		e.processAccelerometer(s)
	case sensor.Gyroscope:
		e.processGyroscope(s)
	case sensor.Magnetometer:
		e.processMagnetometer(s)
	default:
		e.mu.Unlock()
		return event.Heading{}, false
	}
	h, ok := e.computeHeading(s.Timestamp)
	if ok {
		e.out.Enqueue(h)
	}
	e.mu.Unlock()

	e.out.Drain()
	return h, ok
}

// Heading returns the last delivered heading in radians.
func (e *Estimator) Heading() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heading, e.haveHeading
}

// Orientation returns a copy of the world→device rotation.
func (e *Estimator) Orientation() linalg.Mat3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.worldBase
}

// Resets counts divergence recoveries since construction.
func (e *Estimator) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resets
}

// Reset returns the filter to identity orientation with fast magnetic
// alignment re-armed. Listeners are kept.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.haveHeading = false
	e.heading = 0
}

func (e *Estimator) resetLocked() {
	e.worldBase = linalg.Identity()
	e.fastMagAlign = e.cfg.FastMagAlignments
	e.haveAcc = false
	e.haveGyro = false
	for _, w := range e.accWin {
		w.Reset()
	}
}

func (e *Estimator) processAccelerometer(s sensor.Sample) {
	cur := s.Vec()
	if e.haveAcc {
		dt := sensor.Interval(e.lastAccTs, s.Timestamp)
		avg := cur.Add(e.lastAcc).Scale(0.5)
		for i, w := range e.accWin {
			w.Add(dt, avg[i])
		}
		// World z expressed in the device frame.
		predicted := linalg.Rotate(e.worldBase, linalg.UnitZ)
		measured := linalg.Vec3{e.accWin[0].Average(), e.accWin[1].Average(), e.accWin[2].Average()}
		e.worldBase = e.worldBase.RightMultiply(alignment(predicted, measured, e.cfg.AccFactor))
	}
	e.haveAcc = true
	e.lastAccTs = s.Timestamp
	e.lastAcc = cur
}

func (e *Estimator) processGyroscope(s sensor.Sample) {
	cur := s.Vec()
	if e.haveGyro {
		// A clock that ran backwards integrates nothing.
		if dt := sensor.Interval(e.lastGyroTs, s.Timestamp).Seconds(); dt > 0 {
			// The device frame is held fixed, so the world turns the other way.
			rv := cur.Add(e.lastGyro).Scale(-0.5 * dt)
			e.worldBase = e.worldBase.RightMultiply(linalg.RotationVectorToMatrix(rv))
		}
	}
	e.haveGyro = true
	e.lastGyroTs = s.Timestamp
	e.lastGyro = cur
}

func (e *Estimator) processMagnetometer(s sensor.Sample) {
	magWorld := linalg.Rotate(e.worldBase.Transpose(), s.Vec())
	// Only the horizontal field points north; the dip component is dropped.
	measured := linalg.Rotate(e.worldBase, linalg.Vec3{magWorld[0], magWorld[1], 0})
	predicted := linalg.Rotate(e.worldBase, linalg.UnitY)

	factor := e.cfg.MagFactor
	if e.fastMagAlign > 0 {
		factor = 1.0
		e.fastMagAlign--
	}
	e.worldBase = e.worldBase.RightMultiply(alignment(predicted, measured, factor))
}

// computeHeading projects the device y axis into the world frame and measures
// its angle from north. A NaN result resets the filter and is not reported.
func (e *Estimator) computeHeading(ts int64) (event.Heading, bool) {
	fwd := linalg.Rotate(e.worldBase.Transpose(), linalg.UnitY)
	h := math.Atan2(fwd[0], fwd[1])
	if math.IsNaN(h) {
		e.resets++
		monitoring.Logf("heading: filter diverged at ts=%d, reset to identity (resets=%d)", ts, e.resets)
		e.resetLocked()
		return event.Heading{}, false
	}
	if h == -math.Pi {
		h = math.Pi
	}
	e.heading = h
	e.haveHeading = true
	return event.Heading{Timestamp: ts, Radians: h}, true
}

// alignment returns the rotation that turns predicted toward measured by
// factor of the angle between them. Parallel or zero-length inputs give the
// identity.
func alignment(predicted, measured linalg.Vec3, factor float64) linalg.Mat3 {
	p, ok := predicted.Normalize()
	if !ok {
		return linalg.Identity()
	}
	m, ok := measured.Normalize()
	if !ok {
		return linalg.Identity()
	}
	c := p.Cross(m)
	amp := c.Norm()
	if amp == 0 {
		return linalg.Identity()
	}
	// |p×m| is sin of the angle; rounding can push it just above 1.
	angle := math.Asin(math.Min(amp, 1))
	return linalg.RotationVectorToMatrix(c.Scale(angle / amp * factor))
}
