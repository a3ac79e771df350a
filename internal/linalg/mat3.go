package linalg

import (
	"fmt"
	"math"
)

// Mat3 is a row-major 3x3 matrix. As an orientation it is expected to stay
// orthonormal, but nothing here re-projects it: repeated products drift.
type Mat3 [3][3]float64

func Identity() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// MatFromRows validates the shape of externally supplied matrix data.
func MatFromRows(rows [][]float64) (Mat3, error) {
	if len(rows) != 3 {
		return Mat3{}, fmt.Errorf("linalg: matrix needs 3 rows, got %d", len(rows))
	}
	var m Mat3
	for i, r := range rows {
		if len(r) != 3 {
			return Mat3{}, fmt.Errorf("linalg: matrix row %d needs 3 columns, got %d", i, len(r))
		}
		copy(m[i][:], r)
	}
	return m, nil
}

func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

func (m Mat3) Scale(k float64) Mat3 {
	var s Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s[i][j] = k * m[i][j]
		}
	}
	return s
}

// LeftMultiply returns m·right (m on the left).
func (m Mat3) LeftMultiply(right Mat3) Mat3 {
	return mul(m, right)
}

// RightMultiply returns left·m (m on the right).
func (m Mat3) RightMultiply(left Mat3) Mat3 {
	return mul(left, m)
}

func mul(a, b Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return r
}

// IsFinite reports whether every element is a finite number.
func (m Mat3) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if !Vec3(m[i]).IsFinite() {
			return false
		}
	}
	return true
}

// Rotate applies m to v (m·v).
func Rotate(m Mat3, v Vec3) Vec3 {
	var r Vec3
	for i := 0; i < 3; i++ {
		r[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return r
}

// RotationVectorToMatrix converts an axis-angle rotation vector (direction is
// the axis, length is the angle in radians) to a rotation matrix using
// Rodrigues' formula. A zero vector means no rotation and yields the identity.
func RotationVectorToMatrix(v Vec3) Mat3 {
	angle := v.Norm()
	if angle == 0 {
		return Identity()
	}
	x, y, z := v[0]/angle, v[1]/angle, v[2]/angle
	c := math.Cos(angle)
	s := math.Sin(angle)
	t := 1 - c

	return Mat3{
		{c + x*x*t, x*y*t - z*s, x*z*t + y*s},
		{x*y*t + z*s, c + y*y*t, y*z*t - x*s},
		{x*z*t - y*s, y*z*t + x*s, c + z*z*t},
	}
}
