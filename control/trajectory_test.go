package control

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
)

func TestTargetThrust(t *testing.T) {
	g := DefaultGains()
	kin := KinematicState{Position: r3.Vector{X: 1, Y: -1, Z: 0.5}, Velocity: r3.Vector{X: 0.5}}
	sp := HoverSetpoint(r3.Vector{Z: 1})
	sp.Acceleration = r3.Vector{Y: 2}

	target := targetThrust(kin, sp, g)
	test.That(t, target.X, test.ShouldAlmostEqual, -g.KrXY*1-g.KvXY*0.5)
	test.That(t, target.Y, test.ShouldAlmostEqual, g.KrXY*1+g.Mass*2)
	test.That(t, target.Z, test.ShouldAlmostEqual, g.KrZ*0.5+g.Mass*Gravity)
}

func TestPositionHoldReference(t *testing.T) {
	g := DefaultGains()
	hover := r3.Vector{Z: g.Mass * Gravity}

	ref := positionHoldReference(hover, HoverSetpoint(r3.Vector{}), mgl64.Ident3())
	test.That(t, ref.Rd.ApproxEqual(mgl64.Ident3()), test.ShouldBeTrue)
	test.That(t, ref.Thrust, test.ShouldAlmostEqual, g.Mass*Gravity)
	test.That(t, ref.Wd, test.ShouldResemble, r3.Vector{})

	sp := HoverSetpoint(r3.Vector{})
	sp.Yaw = 90
	sp.AttitudeRate = Attitude{Roll: 180, Pitch: 90, Yaw: -180}
	ref = positionHoldReference(hover, sp, mgl64.Ident3())
	test.That(t, spatialmath.R3VectorAlmostEqual(spatialmath.Column(ref.Rd, 0), r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(spatialmath.Column(ref.Rd, 1), r3.Vector{X: -1}, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(ref.Wd, r3.Vector{X: math.Pi, Y: -math.Pi / 2, Z: -math.Pi}, 1e-12),
		test.ShouldBeTrue)

	// Tilting the target thrust forward tilts the desired body z axis with it, and the thrust is
	// its projection on the current body z axis.
	tilted := r3.Vector{X: 0.1, Z: g.Mass * Gravity}
	ref = positionHoldReference(tilted, HoverSetpoint(r3.Vector{}), mgl64.Ident3())
	test.That(t, spatialmath.R3VectorAlmostEqual(spatialmath.Column(ref.Rd, 2), tilted.Normalize(), 1e-12), test.ShouldBeTrue)
	test.That(t, ref.Thrust, test.ShouldAlmostEqual, g.Mass*Gravity)
	test.That(t, ref.DesiredPitch, test.ShouldAlmostEqual, math.Atan2(0.1, g.Mass*Gravity))
}

func TestFlipAt(t *testing.T) {
	start := FlipAt(0, 1)
	e := math.Exp(20 * 0.45)
	test.That(t, start.Q0, test.ShouldAlmostEqual, 1.998/(1+e)-0.999)
	test.That(t, start.Q0, test.ShouldBeLessThan, -0.998)
	test.That(t, start.Q0*start.Q0+start.Q2*start.Q2, test.ShouldAlmostEqual, 1)
	test.That(t, start.Thrust, test.ShouldAlmostEqual, 0.62)

	mid := FlipAt(0.45, 1)
	test.That(t, mid.Q0, test.ShouldEqual, 0.0)
	test.That(t, mid.Q2, test.ShouldEqual, 1.0)
	test.That(t, mid.RateY, test.ShouldAlmostEqual, 19.98)
	test.That(t, mid.Thrust, test.ShouldAlmostEqual, 0.18)

	end := FlipAt(1, 1)
	test.That(t, end.Q0, test.ShouldBeGreaterThan, 0.998)

	// A slower timescale stretches the profile in time and slows the rate down.
	slow := FlipAt(0.9, 2)
	test.That(t, slow.Q0, test.ShouldAlmostEqual, mid.Q0)
	test.That(t, slow.RateY, test.ShouldAlmostEqual, mid.RateY/2)
}

func TestFlipRateMatchesQuaternion(t *testing.T) {
	const h = 1e-6
	for _, ts := range []float64{0.2, 0.4, 0.45, 0.5, 0.7} {
		before, after := FlipAt(ts-h, 1), FlipAt(ts+h, 1)
		qBefore := spatialmath.NewQuat(0, before.Q2, 0, before.Q0)
		qAfter := spatialmath.NewQuat(0, after.Q2, 0, after.Q0)
		rate := spatialmath.QuatToAngVel(qBefore, qAfter, 2*h)

		// RateY is expressed with pitch flipped.
		test.That(t, -rate.Y, test.ShouldAlmostEqual, FlipAt(ts, 1).RateY, 1e-4)
		test.That(t, rate.X, test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, rate.Z, test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestFlipReference(t *testing.T) {
	g := DefaultGains()
	ref := flipReference(0.45, g)
	// Halfway through, the body is pitched upside down.
	test.That(t, ref.Rd.At(2, 2), test.ShouldAlmostEqual, -1)
	test.That(t, ref.Wd.X, test.ShouldEqual, 0.0)
	test.That(t, ref.Wd.Z, test.ShouldEqual, 0.0)
	test.That(t, ref.Thrust, test.ShouldAlmostEqual, 0.18)
}

func TestProjectedThrust(t *testing.T) {
	test.That(t, projectedThrust(r3.Vector{Z: 0.3}, mgl64.Ident3()), test.ShouldAlmostEqual, 0.3)
	test.That(t, projectedThrust(r3.Vector{Z: 1}, mgl64.Ident3()), test.ShouldEqual, 0.5)
	test.That(t, projectedThrust(r3.Vector{Z: 0.01}, mgl64.Ident3()), test.ShouldEqual, 0.22)

	sideways := spatialmath.QuatToRotationMatrix(spatialmath.QuatFromAxisAngle(r3.Vector{X: 1}, math.Pi/2))
	test.That(t, projectedThrust(r3.Vector{Z: 0.3}, sideways), test.ShouldEqual, 0.22)
}
