// Package control implements a geometric SE(3) tracking controller for a quadrotor, the
// reference trajectories that drive it and the periodic loop that runs it.
package control

import (
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Mode selects the reference trajectory the controller tracks.
type Mode int

const (
	// ModePositionHold tracks a position/velocity/acceleration setpoint with a yaw heading.
	ModePositionHold Mode = iota
	// ModeFlip tracks a closed-form pitch flip parameterized by time since the last reset.
	ModeFlip
)

func (m Mode) String() string {
	switch m {
	case ModePositionHold:
		return "position_hold"
	case ModeFlip:
		return "flip"
	default:
		return "unknown"
	}
}

// ModeFromString parses the output of Mode.String.
func ModeFromString(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "position_hold", "positionhold", "hold":
		return ModePositionHold, nil
	case "flip":
		return ModeFlip, nil
	}
	return ModePositionHold, errors.Errorf("unknown controller mode %q", s)
}

// AxisMode is how a setpoint wants one axis to be controlled.
type AxisMode int

const (
	// AxisDisabled leaves the axis to a raw override.
	AxisDisabled AxisMode = iota
	// AxisAbsolute tracks an absolute value.
	AxisAbsolute
	// AxisVelocity tracks a rate.
	AxisVelocity
)

// AxisModes holds the per-axis control modes of a setpoint.
type AxisModes struct {
	X, Y, Z          AxisMode
	Roll, Pitch, Yaw AxisMode
}

// Attitude is a roll/pitch/yaw triple. Its unit depends on where it is used.
type Attitude struct {
	Roll, Pitch, Yaw float64
}

// AttitudeState is the estimated orientation of the body. The quaternion must be unit norm.
type AttitudeState struct {
	Quaternion quat.Number
}

// KinematicState is the estimated position (m) and velocity (m/s) in the world frame, z up.
type KinematicState struct {
	Position r3.Vector
	Velocity r3.Vector
}

// State is the full state estimate consumed by the controller each tick.
type State struct {
	Attitude  AttitudeState
	Kinematic KinematicState
}

// SensorData holds the raw sensor samples the controller reads directly.
type SensorData struct {
	// Gyro is the body angular rate in degrees per second.
	Gyro r3.Vector
}

// Setpoint is what the commander asks for this tick.
type Setpoint struct {
	Position     r3.Vector
	Velocity     r3.Vector
	Acceleration r3.Vector
	// Yaw heading in degrees.
	Yaw float64
	// AttitudeRate in degrees per second.
	AttitudeRate Attitude
	// Thrust is passed through unchanged when Mode.Z is AxisDisabled.
	Thrust float64
	Mode   AxisModes
}

// HoverSetpoint returns a setpoint holding `position` with zero yaw.
func HoverSetpoint(position r3.Vector) Setpoint {
	return Setpoint{
		Position: position,
		Mode: AxisModes{
			X: AxisAbsolute, Y: AxisAbsolute, Z: AxisAbsolute,
			Roll: AxisAbsolute, Pitch: AxisAbsolute, Yaw: AxisAbsolute,
		},
	}
}

// OutputLimit is the symmetric limit of the roll, pitch and yaw commands.
const OutputLimit = 32000

// ControlCommand is handed to power distribution.
type ControlCommand struct {
	// Thrust in actuator units, never negative.
	Thrust float64
	// Roll, Pitch and Yaw are torque-proportional commands within ±OutputLimit.
	Roll, Pitch, Yaw int16

	// ForceTorque marks commands whose Thrust is a collective force in newtons and whose torque
	// is Torque in newton metres. Power distribution then converts forces to PWM itself.
	ForceTorque bool
	Torque      r3.Vector
}

// Controller is anything that turns state and setpoint into a command once per main loop tick.
// The boolean is false when the controller did not run on this tick.
type Controller interface {
	RunTick(state State, sensors SensorData, setpoint Setpoint, tick uint32) (ControlCommand, bool)
}
