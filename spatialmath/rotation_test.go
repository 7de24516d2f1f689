package spatialmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestQuatToRotationMatrix(t *testing.T) {
	identity := QuatToRotationMatrix(NewQuat(0, 0, 0, 1))
	test.That(t, identity.ApproxEqual(mgl64.Ident3()), test.ShouldBeTrue)

	// 90 degrees about z takes x to y.
	rz := QuatToRotationMatrix(QuatFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2))
	x := MulVec(rz, r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(x, r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)

	// Matches mgl64's own quaternion conversion.
	q := QuatFromAxisAngle(r3.Vector{X: 1, Y: -2, Z: 0.5}, 1.1)
	expected := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Mat4().Mat3()
	test.That(t, QuatToRotationMatrix(q).ApproxEqualThreshold(expected, 1e-12), test.ShouldBeTrue)
}

func TestColumnsAndRows(t *testing.T) {
	c0 := r3.Vector{X: 1, Y: 2, Z: 3}
	c1 := r3.Vector{X: 4, Y: 5, Z: 6}
	c2 := r3.Vector{X: 7, Y: 8, Z: 9}
	m := RotationMatrixFromColumns(c0, c1, c2)
	test.That(t, Column(m, 0), test.ShouldResemble, c0)
	test.That(t, Column(m, 2), test.ShouldResemble, c2)
	test.That(t, m.At(1, 0), test.ShouldEqual, 2.0)
	test.That(t, m.Transpose(), test.ShouldResemble, RotationMatrixFromRows(c0, c1, c2))
}

func TestVeeHat(t *testing.T) {
	v := r3.Vector{X: 0.3, Y: -1.2, Z: 2.5}
	test.That(t, Vee(Hat(v)), test.ShouldResemble, v)

	u := r3.Vector{X: -4, Y: 0.5, Z: 1}
	test.That(t, R3VectorAlmostEqual(MulVec(Hat(v), u), v.Cross(u), 1e-12), test.ShouldBeTrue)
}

func TestQuatToEulerAngles(t *testing.T) {
	pitch := QuatToEulerAngles(QuatFromAxisAngle(r3.Vector{Y: 1}, 0.4))
	test.That(t, pitch.Roll, test.ShouldAlmostEqual, 0)
	test.That(t, pitch.Pitch, test.ShouldAlmostEqual, 0.4)
	test.That(t, pitch.Yaw, test.ShouldAlmostEqual, 0)

	yaw := QuatToEulerAngles(QuatFromAxisAngle(r3.Vector{Z: 1}, -1.0))
	test.That(t, yaw.Yaw, test.ShouldAlmostEqual, -1.0)

	// Beyond 90 degrees pitch asin folds back; the result is still finite.
	folded := QuatToEulerAngles(QuatFromAxisAngle(r3.Vector{Y: 1}, math.Pi/2+1e-9))
	test.That(t, math.IsNaN(folded.Pitch), test.ShouldBeFalse)
}

func TestIntegrateAngularVelocity(t *testing.T) {
	q := NewQuat(0, 0, 0, 1)
	w := r3.Vector{X: 0.2, Y: -0.1, Z: 0.5}
	const dt = 0.001
	for i := 0; i < 1000; i++ {
		q = IntegrateAngularVelocity(q, w, dt)
	}
	expected := QuatFromAxisAngle(w, w.Norm())
	test.That(t, q.Real, test.ShouldAlmostEqual, expected.Real, 1e-9)
	test.That(t, q.Jmag, test.ShouldAlmostEqual, expected.Jmag, 1e-9)

	recovered := QuatToAngVel(NewQuat(0, 0, 0, 1), q, 1)
	test.That(t, R3VectorAlmostEqual(recovered, w, 1e-9), test.ShouldBeTrue)
}
