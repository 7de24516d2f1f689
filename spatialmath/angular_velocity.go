package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// IntegrateAngularVelocity advances the unit quaternion `q` by the body angular velocity `w`
// (rad/s) over `dt` seconds and renormalizes the result.
func IntegrateAngularVelocity(q quat.Number, w r3.Vector, dt float64) quat.Number {
	theta := w.Norm() * dt
	if theta < 1e-12 {
		return q
	}
	dq := QuatFromAxisAngle(w, theta)
	next := quat.Mul(q, dq)
	return quat.Scale(1/quat.Abs(next), next)
}

// QuatToAngVel calculates the body angular velocity that takes `from` to `to` in `dt` seconds.
func QuatToAngVel(from, to quat.Number, dt float64) r3.Vector {
	diff := quat.Mul(quat.Conj(from), to)
	if diff.Real < 0 {
		diff = quat.Scale(-1, diff)
	}
	vec := r3.Vector{X: diff.Imag, Y: diff.Jmag, Z: diff.Kmag}
	sinHalf := vec.Norm()
	if sinHalf < 1e-12 {
		return r3.Vector{}
	}
	theta := 2 * math.Atan2(sinHalf, diff.Real)
	return vec.Mul(theta / (sinHalf * dt))
}
