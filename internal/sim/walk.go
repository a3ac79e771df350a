package sim

import (
	"math"
	"math/rand"
	"time"

	"ubipos/internal/sensor"
)

// Walk is a deterministic pedestrian carrying a flat device: the device y
// axis points along the walking direction, which yaws at a constant rate,
// while the body bounces vertically once per step.
//
// Zero values select defaults, except StartHeadingDeg, TurnRateDegPerSec,
// DipDeg and AccelNoise where zero is meaningful.
type Walk struct {
	SampleRate        float64 // Hz per sensor, default 100
	Cadence           float64 // steps per second, default 2
	Bounce            float64 // vertical acceleration amplitude in m/s², default 2
	Gravity           float64 // m/s², default 9.81
	StartHeadingDeg   float64 // clockwise from magnetic north
	TurnRateDegPerSec float64 // positive turns clockwise
	FieldMicroTesla   float64 // total field strength, default 48
	DipDeg            float64 // inclination below the horizon

	// AccelNoise adds uniform noise in ±AccelNoise m/s² to the vertical
	// acceleration, drawn from a source seeded with Seed.
	AccelNoise float64
	Seed       int64
}

func (w Walk) withDefaults() Walk {
	if w.SampleRate <= 0 {
		w.SampleRate = 100
	}
	if w.Cadence <= 0 {
		w.Cadence = 2
	}
	if w.Bounce <= 0 {
		w.Bounce = 2
	}
	if w.Gravity <= 0 {
		w.Gravity = 9.81
	}
	if w.FieldMicroTesla <= 0 {
		w.FieldMicroTesla = 48
	}
	return w
}

// Period is the time between two samples of the same sensor.
func (w Walk) Period() time.Duration {
	w = w.withDefaults()
	return time.Duration(math.Round(float64(time.Second) / w.SampleRate))
}

// HeadingAt returns the true heading in radians, in (−π, π], after elapsed.
func (w Walk) HeadingAt(elapsed time.Duration) float64 {
	deg := w.StartHeadingDeg + w.TurnRateDegPerSec*elapsed.Seconds()
	return wrapRad(deg * math.Pi / 180)
}

// Steps is the number of bounces completed in d.
func (w Walk) Steps(d time.Duration) int {
	w = w.withDefaults()
	return int(math.Floor(w.Cadence * d.Seconds()))
}

// Samples returns accelerometer, gyroscope and magnetometer samples for d,
// interleaved in that order per tick, with the first tick at start (ns).
func (w Walk) Samples(start int64, d time.Duration) []sensor.Sample {
	w = w.withDefaults()
	yawRate := w.TurnRateDegPerSec * math.Pi / 180
	return w.generate(start, d, func(t time.Duration) pose {
		return pose{
			heading: w.HeadingAt(t),
			yawRate: yawRate,
			cadence: w.Cadence,
			bounce:  w.Bounce,
		}
	})
}

// pose is the walker state driving one tick of the generator.
type pose struct {
	heading float64 // rad
	yawRate float64 // rad/s, clockwise
	cadence float64 // Hz; zero means standing still
	bounce  float64 // m/s²
}

func (w Walk) generate(start int64, d time.Duration, at func(time.Duration) pose) []sensor.Sample {
	period := w.Period()
	if d <= 0 || period <= 0 {
		return nil
	}
	n := int(d / period)

	dip := w.DipDeg * math.Pi / 180
	horiz := w.FieldMicroTesla * math.Cos(dip)
	vert := w.FieldMicroTesla * math.Sin(dip)

	var rng *rand.Rand
	if w.AccelNoise > 0 {
		rng = rand.New(rand.NewSource(w.Seed))
	}

	out := make([]sensor.Sample, 0, 3*n)
	phase := 0.0
	for i := 0; i < n; i++ {
		elapsed := time.Duration(i) * period
		ts := start + int64(elapsed)
		p := at(elapsed)

		az := w.Gravity + p.bounce*math.Sin(phase)
		if rng != nil {
			az += (rng.Float64()*2 - 1) * w.AccelNoise
		}
		phase += 2 * math.Pi * p.cadence * period.Seconds()

		sin, cos := math.Sincos(p.heading)
		out = append(out,
			sensor.Sample{Kind: sensor.Accelerometer, Timestamp: ts, Values: [3]float32{0, 0, float32(az)}},
			// A clockwise turn seen from above is a negative rotation about
			// the device z axis.
			sensor.Sample{Kind: sensor.Gyroscope, Timestamp: ts, Values: [3]float32{0, 0, float32(-p.yawRate)}},
			sensor.Sample{Kind: sensor.Magnetometer, Timestamp: ts, Values: [3]float32{
				float32(-horiz * sin),
				float32(horiz * cos),
				float32(-vert),
			}},
		)
	}
	return out
}

// wrapRad maps an angle into (−π, π].
func wrapRad(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
