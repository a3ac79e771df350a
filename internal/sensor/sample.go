// Package sensor defines the raw triaxial samples fed into the fusion core.
package sensor

import (
	"fmt"
	"math"
	"time"

	"ubipos/internal/linalg"
)

type Kind int

const (
	Unknown Kind = iota
	Accelerometer
	Gyroscope
	Magnetometer
)

// String returns the short name used in sensor logs.
func (k Kind) String() string {
	switch k {
	case Accelerometer:
		return "acc"
	case Gyroscope:
		return "gyro"
	case Magnetometer:
		return "mag"
	default:
		return "unknown"
	}
}

// ParseKind accepts the short log names plus a few long-form aliases.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "acc", "accel", "accelerometer":
		return Accelerometer, nil
	case "gyro", "gyroscope":
		return Gyroscope, nil
	case "mag", "magnetometer":
		return Magnetometer, nil
	}
	return Unknown, fmt.Errorf("sensor: unknown kind %q", s)
}

// Sample is one triaxial reading. Timestamp is in nanoseconds on the sensor
// clock and must be non-decreasing per kind. Units are m/s² (accelerometer),
// rad/s (gyroscope) and µT (magnetometer).
type Sample struct {
	Kind      Kind
	Timestamp int64
	Values    [3]float32
}

func (s Sample) Vec() linalg.Vec3 {
	return linalg.Vec3{float64(s.Values[0]), float64(s.Values[1]), float64(s.Values[2])}
}

// Magnitude is the Euclidean norm of the three values.
func (s Sample) Magnitude() float64 {
	return s.Vec().Norm()
}

// Interval returns the time from prev to s, zero or negative when the clock
// did not advance.
func Interval(prev, cur int64) time.Duration {
	return time.Duration(cur - prev)
}

// Finite reports whether all three values are finite numbers.
func (s Sample) Finite() bool {
	for _, v := range s.Values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
