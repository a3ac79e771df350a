// Package event carries the outputs of the fusion core and the boundary
// events (floor, context) produced by detectors outside it.
package event

// Heading is one heading observation in radians from world north, in (−π, π].
// A delivered Heading is never NaN.
type Heading struct {
	Timestamp int64
	Radians   float64
}

// Step is one validated step.
type Step struct {
	Timestamp int64   // ns, sample that closed the step
	Duration  float64 // seconds
	Length    float64 // meters
}

// Floor reports the floor the user is on after a detected floor change.
type Floor struct {
	Timestamp int64
	Floor     int
}

type ContextType int

const (
	Outdoor ContextType = iota
	Hall
	Elevator
	Stairs
	Corridor
)

func (c ContextType) String() string {
	switch c {
	case Outdoor:
		return "outdoor"
	case Hall:
		return "hall"
	case Elevator:
		return "elevator"
	case Stairs:
		return "stairs"
	case Corridor:
		return "corridor"
	default:
		return "unknown"
	}
}

// Context describes the location context and how far each positioning
// source can be trusted in it.
type Context struct {
	Type     ContextType
	PDR      float64
	WiFi     float64
	Magnetic float64
	BLE      float64
	GPS      float64
}

type HeadingListener interface {
	OnHeadingChange(Heading)
}

type StepListener interface {
	OnStep(Step)
}

type FloorListener interface {
	OnFloor(Floor)
}

type ContextListener interface {
	OnContext(Context)
}

type HeadingListenerFunc func(Heading)

func (f HeadingListenerFunc) OnHeadingChange(h Heading) { f(h) }

type StepListenerFunc func(Step)

func (f StepListenerFunc) OnStep(s Step) { f(s) }

type FloorListenerFunc func(Floor)

func (f FloorListenerFunc) OnFloor(e Floor) { f(e) }

type ContextListenerFunc func(Context)

func (f ContextListenerFunc) OnContext(c Context) { f(c) }
