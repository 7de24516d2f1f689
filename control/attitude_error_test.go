package control

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
)

func TestAttitudeErrorAligned(t *testing.T) {
	for _, q := range []r3.Vector{{X: 1}, {Y: 1}, {X: 1, Y: 2, Z: -3}} {
		R := spatialmath.QuatToRotationMatrix(spatialmath.QuatFromAxisAngle(q, 0.7))
		w := r3.Vector{X: 0.1, Y: -0.2, Z: 0.3}
		eR, ew, psi := AttitudeError(R, R, w, w)
		test.That(t, spatialmath.R3VectorAlmostEqual(eR, r3.Vector{}, 1e-12), test.ShouldBeTrue)
		test.That(t, ew, test.ShouldResemble, r3.Vector{})
		test.That(t, psi, test.ShouldAlmostEqual, 0, 1e-12)
	}

	eR, _, psi := AttitudeError(mgl64.Ident3(), mgl64.Ident3(), r3.Vector{}, r3.Vector{})
	test.That(t, eR, test.ShouldResemble, r3.Vector{})
	test.That(t, psi, test.ShouldEqual, 0.0)
}

func TestAttitudeErrorSmallRotation(t *testing.T) {
	// For small rotations eR ≈ 2θ·axis, with the pitch component flipped.
	const theta = 1e-3
	Rd := mgl64.Ident3()
	for _, tc := range []struct {
		axis     r3.Vector
		expected r3.Vector
	}{
		{r3.Vector{X: 1}, r3.Vector{X: 2 * theta}},
		{r3.Vector{Y: 1}, r3.Vector{Y: -2 * theta}},
		{r3.Vector{Z: 1}, r3.Vector{Z: 2 * theta}},
	} {
		R := spatialmath.QuatToRotationMatrix(spatialmath.QuatFromAxisAngle(tc.axis, theta))
		eR, _, psi := AttitudeError(R, Rd, r3.Vector{}, r3.Vector{})
		test.That(t, spatialmath.R3VectorAlmostEqual(eR, tc.expected, 1e-9), test.ShouldBeTrue)
		test.That(t, psi, test.ShouldAlmostEqual, 1-math.Cos(theta), 1e-12)
	}
}

func TestAttitudeErrorUpsideDown(t *testing.T) {
	R := spatialmath.QuatToRotationMatrix(spatialmath.QuatFromAxisAngle(r3.Vector{X: 1}, math.Pi))
	eR, _, psi := AttitudeError(R, mgl64.Ident3(), r3.Vector{}, r3.Vector{})
	test.That(t, psi, test.ShouldAlmostEqual, 2)
	// The vee map vanishes at a half turn; psi is what reports the misalignment.
	test.That(t, spatialmath.R3VectorAlmostEqual(eR, r3.Vector{}, 1e-12), test.ShouldBeTrue)
}

func TestMeasuredRate(t *testing.T) {
	w := measuredRate(r3.Vector{X: 180, Y: 90, Z: -360})
	test.That(t, w.X, test.ShouldAlmostEqual, math.Pi)
	test.That(t, w.Y, test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, w.Z, test.ShouldAlmostEqual, -2*math.Pi)
}
