package control

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// AttitudeError computes the SO(3) tracking error between the current rotation `R` and the
// desired rotation `Rd`, together with the body rate error.
//
// eR is the vee map of Rdᵀ·R − Rᵀ·Rd with its pitch component negated, so it lives in the same
// pitch-flipped frame as the measured rates. psi is ½·trace(I − Rdᵀ·R), which is 0 when aligned
// and 2 at the largest misalignment. ew is w − wd.
func AttitudeError(R, Rd mgl64.Mat3, w, wd r3.Vector) (eR, ew r3.Vector, psi float64) {
	eR1 := Rd.Transpose().Mul3(R)
	eR2 := R.Transpose().Mul3(Rd)

	psi = 0.5 * mgl64.Ident3().Sub(eR1).Trace()

	vee := spatialmath.Vee(eR1.Sub(eR2))
	eR = r3.Vector{X: vee.X, Y: -vee.Y, Z: vee.Z}
	ew = w.Sub(wd)
	return eR, ew, psi
}

// measuredRate converts a gyro sample in deg/s into the controller's body rate frame in rad/s,
// whose pitch axis is flipped.
func measuredRate(gyro r3.Vector) r3.Vector {
	return r3.Vector{
		X: utils.DegToRad(gyro.X),
		Y: -utils.DegToRad(gyro.Y),
		Z: utils.DegToRad(gyro.Z),
	}
}
