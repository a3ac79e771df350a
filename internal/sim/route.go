package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"ubipos/internal/sensor"
)

// RouteScript is a deterministic, keyframe-driven walk.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	keyframes:
//	  - t: 0s
//	    heading_deg: 0
//	    cadence_hz: 2
//	    bounce: 2
//	  - t: 10s
//	    heading_deg: 90
//	    cadence_hz: 1.8
//
// Heading interpolates along the shortest arc; cadence and bounce linearly.
// A cadence of 0 means standing still.
type RouteScript struct {
	Version   int             `yaml:"version"`
	Duration  time.Duration   `yaml:"duration"`
	Keyframes []RouteKeyframe `yaml:"keyframes"`
}

type RouteKeyframe struct {
	T          time.Duration `yaml:"t"`
	HeadingDeg float64       `yaml:"heading_deg"`
	CadenceHz  float64       `yaml:"cadence_hz"`
	Bounce     float64       `yaml:"bounce"`
}

// Route is the validated, runtime representation.
type Route struct {
	script   RouteScript
	duration time.Duration
}

// RouteState is the walker state at a time.
type RouteState struct {
	HeadingDeg float64 // [0, 360)
	// TurnRateDegPerSec is the constant yaw rate of the current segment.
	TurnRateDegPerSec float64
	CadenceHz         float64
	Bounce            float64
}

func LoadRouteScript(path string) (RouteScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RouteScript{}, err
	}
	return ParseRouteScriptYAML(b)
}

func ParseRouteScriptYAML(b []byte) (RouteScript, error) {
	var s RouteScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return RouteScript{}, err
	}
	return s, nil
}

func NewRoute(script RouteScript) (*Route, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported route version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kf.CadenceHz < 0 || kf.Bounce < 0 {
			return nil, fmt.Errorf("keyframes[%d]: cadence_hz and bounce must be >= 0", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Route{script: script, duration: dur}, nil
}

func (r *Route) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.duration
}

// StateAt computes the walker state at elapsed, which is clamped to
// [0, Duration()].
func (r *Route) StateAt(elapsed time.Duration) RouteState {
	if r == nil {
		return RouteState{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > r.duration {
		elapsed = r.duration
	}

	k0, k1, alpha := selectSegment(r.script.Keyframes, elapsed)
	st := RouteState{
		HeadingDeg: lerpAngleDeg(k0.HeadingDeg, k1.HeadingDeg, alpha),
		CadenceHz:  lerp(k0.CadenceHz, k1.CadenceHz, alpha),
		Bounce:     lerp(k0.Bounce, k1.Bounce, alpha),
	}
	if span := k1.T - k0.T; span > 0 {
		st.TurnRateDegPerSec = shortestDeltaDeg(k0.HeadingDeg, k1.HeadingDeg) / span.Seconds()
	}
	return st
}

// Samples renders the whole route with base supplying the sample rate,
// gravity, magnetic field and noise. A keyframe bounce of 0 falls back to
// base's bounce while walking.
func (r *Route) Samples(base Walk, start int64) []sensor.Sample {
	base = base.withDefaults()
	return base.generate(start, r.duration, func(t time.Duration) pose {
		st := r.StateAt(t)
		bounce := st.Bounce
		if bounce == 0 {
			bounce = base.Bounce
		}
		if st.CadenceHz == 0 {
			bounce = 0
		}
		return pose{
			heading: wrapRad(st.HeadingDeg * math.Pi / 180),
			yawRate: st.TurnRateDegPerSec * math.Pi / 180,
			cadence: st.CadenceHz,
			bounce:  bounce,
		}
	})
}

func selectSegment(kfs []RouteKeyframe, t time.Duration) (RouteKeyframe, RouteKeyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func normDeg(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}

func shortestDeltaDeg(a0, a1 float64) float64 {
	delta := normDeg(a1) - normDeg(a0)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return delta
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	return normDeg(normDeg(a0) + shortestDeltaDeg(a0, a1)*t)
}
