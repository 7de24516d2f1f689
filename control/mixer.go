package control

import (
	"github.com/golang/geo/r3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// gyroFeedForward is the gyroscopic term w × (I·w) with a diagonal inertia. The y component of
// I·w reuses Ixx·w.x.
func gyroFeedForward(w r3.Vector, g Gains) r3.Vector {
	iw := r3.Vector{X: g.Ixx * w.X, Y: g.Ixx * w.X, Z: g.Izz * w.Z}
	return w.Cross(iw)
}

// mixTorque combines the feed-forward, attitude error, rate error and derivative terms into the
// body torque. The yaw attitude term is negated in ModePositionHold only.
func mixTorque(mode Mode, cross, eR, ew r3.Vector, errDRoll, errDPitch float64, g Gains) r3.Vector {
	yawAttitude := -g.KRZ * eR.Z
	if mode == ModeFlip {
		yawAttitude = g.KRZ * eR.Z
	}
	return r3.Vector{
		X: cross.X - g.KRXY*eR.X - g.KwXY*ew.X + g.KdOmegaRP*errDRoll,
		Y: cross.Y - g.KRXY*eR.Y - g.KwXY*ew.Y + g.KdOmegaRP*errDPitch,
		Z: yawAttitude - g.KwZ*ew.Z,
	}
}

// scaleOutputs turns a thrust in newtons and a torque in newton metres into a ControlCommand. A
// setpoint with z control disabled overrides the thrust. Torques are only commanded when there is
// thrust to produce them.
func scaleOutputs(thrust float64, torque r3.Vector, sp Setpoint, g Gains) ControlCommand {
	var cmd ControlCommand
	if sp.Mode.Z == AxisDisabled {
		cmd.Thrust = sp.Thrust
	} else {
		cmd.Thrust = thrust * g.ThrustScale
	}
	if !(cmd.Thrust > 0) {
		cmd.Thrust = 0
		return cmd
	}

	cmd.Roll = saturate(torque.X * g.ThrustScale / g.ArmLength)
	cmd.Pitch = saturate(torque.Y * g.ThrustScale / g.ArmLength)
	cmd.Yaw = saturate(-torque.Z * g.ThrustScale / g.YawArmRatio)
	return cmd
}

func saturate(v float64) int16 {
	return int16(utils.Clamp(v, -OutputLimit, OutputLimit))
}
