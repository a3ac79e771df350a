// Package linalg holds the small amount of 3-vector and 3x3 matrix algebra the
// heading filter needs. It is not a general linear-algebra package.
package linalg

import (
	"fmt"
	"math"
)

// Vec3 is a 3-D vector (x, y, z).
type Vec3 [3]float64

var (
	UnitX = Vec3{1, 0, 0}
	UnitY = Vec3{0, 1, 0}
	UnitZ = Vec3{0, 0, 1}
)

// VecFromSlice validates arity at integration boundaries where data arrives
// as a slice.
func VecFromSlice(v []float64) (Vec3, error) {
	if len(v) != 3 {
		return Vec3{}, fmt.Errorf("linalg: vector needs 3 elements, got %d", len(v))
	}
	return Vec3{v[0], v[1], v[2]}, nil
}

// Norm is the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Normalize returns v scaled to unit length.
// The zero vector has no direction: it is returned unchanged with ok=false.
func (v Vec3) Normalize() (u Vec3, ok bool) {
	n := v.Norm()
	if n == 0 {
		return Vec3{}, false
	}
	return Vec3{v[0] / n, v[1] / n, v[2] / n}, true
}

func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{k * v[0], k * v[1], k * v[2]}
}

func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Cross returns v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// IsFinite reports whether no component is NaN or ±Inf.
func (v Vec3) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
