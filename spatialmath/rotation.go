// Package spatialmath defines the rotation helpers shared by the controller and the simulator.
// Quaternions are gonum `quat.Number`s, rotation matrices are `mgl64.Mat3` and vectors are
// `r3.Vector`s.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// NewQuat builds a quaternion from its vector part (x, y, z) and scalar part w.
func NewQuat(x, y, z, w float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// QuatFromAxisAngle returns the unit quaternion rotating by `theta` radians about `axis`.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	axis = axis.Normalize()
	s := math.Sin(theta / 2)
	return NewQuat(axis.X*s, axis.Y*s, axis.Z*s, math.Cos(theta/2))
}

// QuatToRotationMatrix converts a unit quaternion into the rotation matrix it represents. The
// quaternion is not normalized first.
func QuatToRotationMatrix(q quat.Number) mgl64.Mat3 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return RotationMatrixFromRows(
		r3.Vector{X: 1 - 2*y*y - 2*z*z, Y: 2*x*y - 2*z*w, Z: 2*x*z + 2*y*w},
		r3.Vector{X: 2*x*y + 2*z*w, Y: 1 - 2*x*x - 2*z*z, Z: 2*y*z - 2*x*w},
		r3.Vector{X: 2*x*z - 2*y*w, Y: 2*y*z + 2*x*w, Z: 1 - 2*x*x - 2*y*y},
	)
}

// RotationMatrixFromColumns builds a matrix whose columns are the given vectors.
func RotationMatrixFromColumns(c0, c1, c2 r3.Vector) mgl64.Mat3 {
	return mgl64.Mat3FromCols(toVec3(c0), toVec3(c1), toVec3(c2))
}

// RotationMatrixFromRows builds a matrix whose rows are the given vectors.
func RotationMatrixFromRows(r0, r1, r2 r3.Vector) mgl64.Mat3 {
	return mgl64.Mat3FromRows(toVec3(r0), toVec3(r1), toVec3(r2))
}

// Column returns column `col` of `m`.
func Column(m mgl64.Mat3, col int) r3.Vector {
	return FromVec3(m.Col(col))
}

// MulVec returns m*v.
func MulVec(m mgl64.Mat3, v r3.Vector) r3.Vector {
	return FromVec3(m.Mul3x1(toVec3(v)))
}

// Vee is the inverse of Hat: it extracts (m[2][1], m[0][2], m[1][0]) from a skew-symmetric matrix.
func Vee(m mgl64.Mat3) r3.Vector {
	return r3.Vector{X: m.At(2, 1), Y: m.At(0, 2), Z: m.At(1, 0)}
}

// Hat returns the skew-symmetric matrix such that Hat(v)*u == v x u.
func Hat(v r3.Vector) mgl64.Mat3 {
	return RotationMatrixFromRows(
		r3.Vector{X: 0, Y: -v.Z, Z: v.Y},
		r3.Vector{X: v.Z, Y: 0, Z: -v.X},
		r3.Vector{X: -v.Y, Y: v.X, Z: 0},
	)
}

// FromVec3 converts an mgl64 vector into an r3 vector.
func FromVec3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if all elements are within epsilon
// of each other.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) <= epsilon && math.Abs(a.Y-b.Y) <= epsilon && math.Abs(a.Z-b.Z) <= epsilon
}
