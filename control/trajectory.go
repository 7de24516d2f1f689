package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// reference is what a trajectory asks the attitude loop to track on one tick.
type reference struct {
	Rd mgl64.Mat3
	// Wd is the desired body rate in the pitch-flipped frame, rad/s.
	Wd r3.Vector
	// Thrust is the desired collective thrust in newtons.
	Thrust float64
	// DesiredPitch is the pitch of Rd in radians, for telemetry only.
	DesiredPitch float64
}

// targetThrust is the PD plus feed-forward force −Kr⊙er − Kv⊙ev + m·(a + g·ẑ) in the world frame.
func targetThrust(kin KinematicState, sp Setpoint, g Gains) r3.Vector {
	er := kin.Position.Sub(sp.Position)
	ev := kin.Velocity.Sub(sp.Velocity)
	return r3.Vector{
		X: -g.KrXY*er.X - g.KvXY*ev.X + g.Mass*sp.Acceleration.X,
		Y: -g.KrXY*er.Y - g.KvXY*ev.Y + g.Mass*sp.Acceleration.Y,
		Z: -g.KrZ*er.Z - g.KvZ*ev.Z + g.Mass*(sp.Acceleration.Z+Gravity),
	}
}

// positionHoldReference aligns the body z axis with the target thrust and the body x axis with
// the setpoint heading. The thrust is the target thrust projected on the current body z axis.
func positionHoldReference(target r3.Vector, sp Setpoint, R mgl64.Mat3) reference {
	yaw := utils.DegToRad(sp.Yaw)
	heading := r3.Vector{X: math.Cos(yaw), Y: math.Sin(yaw)}

	r3Axis := target.Normalize()
	r2Axis := r3Axis.Cross(heading).Normalize()
	r1Axis := r2Axis.Cross(r3Axis)
	Rd := spatialmath.RotationMatrixFromColumns(r1Axis, r2Axis, r3Axis)

	return reference{
		Rd: Rd,
		Wd: r3.Vector{
			X: utils.DegToRad(sp.AttitudeRate.Roll),
			Y: -utils.DegToRad(sp.AttitudeRate.Pitch),
			Z: utils.DegToRad(sp.AttitudeRate.Yaw),
		},
		Thrust:       target.Dot(spatialmath.Column(R, 2)),
		DesiredPitch: math.Asin(utils.Clamp(-Rd.At(2, 0), -1, 1)),
	}
}

// Flip trajectory constants. The pitch quaternion follows a logistic curve centered at
// flipCenter (in timescale units) and saturating at ±flipAmplitude.
const (
	flipAmplitude = 0.999
	flipSteepness = 20
	flipCenter    = 0.45

	flipThrustMean      = 0.4
	flipThrustAmplitude = 0.22
	flipThrustPeriod    = 0.9
)

// FlipSample is the flip trajectory evaluated at one instant.
type FlipSample struct {
	// Q0 and Q2 are the scalar and y components of the desired quaternion.
	Q0, Q2 float64
	// RateY is the desired pitch rate in the controller's pitch-flipped frame, rad/s.
	RateY float64
	// Thrust is the desired collective thrust in newtons.
	Thrust float64
}

// FlipAt evaluates the flip trajectory `t` seconds after it started.
func FlipAt(t, timescale float64) FlipSample {
	T := t / timescale
	e := math.Exp(-flipSteepness * (T - flipCenter))
	q0 := 2*flipAmplitude/(1+e) - flipAmplitude
	q2 := math.Sqrt(1 - q0*q0)
	// dq0/dt of the logistic curve.
	dq0 := 2 * flipAmplitude * flipSteepness * e / ((1 + e) * (1 + e)) / timescale

	return FlipSample{
		Q0: q0,
		Q2: q2,
		// The body rate about +y is −2·dq0/q2; the controller frame flips pitch.
		RateY:  2 * dq0 / q2,
		Thrust: flipThrustAmplitude*math.Cos(2*math.Pi*t/(flipThrustPeriod*timescale)) + flipThrustMean,
	}
}

// flipReference builds the attitude reference of the flip `t` seconds after the last reset.
func flipReference(t float64, g Gains) reference {
	sample := FlipAt(t, g.Timescale)
	qd := spatialmath.NewQuat(0, sample.Q2, 0, sample.Q0)
	return reference{
		Rd:           spatialmath.QuatToRotationMatrix(qd),
		Wd:           r3.Vector{Y: sample.RateY},
		Thrust:       sample.Thrust,
		DesiredPitch: spatialmath.QuatToEulerAngles(qd).Pitch,
	}
}

// Bounds of the attitude-projected thrust estimate.
const (
	projectionEpsilon     = 1e-7
	projectedThrustMin    = 0.22
	projectedThrustMax    = 0.5
	projectedThrustBackup = projectedThrustMin
)

// projectedThrust estimates the collective thrust needed to produce the vertical component of
// `target` with the current tilt. It falls back to a constant when the body z axis is close to
// horizontal.
func projectedThrust(target r3.Vector, R mgl64.Mat3) float64 {
	den := R.At(2, 2)
	if den <= projectionEpsilon {
		return projectedThrustBackup
	}
	return utils.Clamp(target.Z/den, projectedThrustMin, projectedThrustMax)
}
