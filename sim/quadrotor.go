// Package sim is a rigid body model of an X configuration quadrotor. It accepts motor ratios
// like the real motors do and reports state like the estimator does, so the controller can be
// flown closed loop without hardware.
package sim

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/power"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// Config describes the simulated vehicle.
type Config struct {
	Mass    float64      `yaml:"mass"`
	Inertia r3.Vector    `yaml:"inertia"`
	Power   power.Config `yaml:"power"`
	// MotorTimeConstant is the first order lag, in seconds, between a ratio and its thrust.
	MotorTimeConstant float64 `yaml:"motor_time_constant"`
	// Rate is the integration frequency in Hz.
	Rate int `yaml:"rate"`
}

// DefaultConfig returns a Crazyflie 2.1 stepped at the main loop rate.
func DefaultConfig() Config {
	return Config{
		Mass:              0.027,
		Inertia:           r3.Vector{X: 0.000014, Y: 0.000014, Z: 0.0000217},
		Power:             power.DefaultConfig(),
		MotorTimeConstant: 0.02,
		Rate:              utils.MainLoopRate,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.Mass <= 0 {
		return errors.Errorf("mass must be positive, got %v", cfg.Mass)
	}
	if cfg.Inertia.X <= 0 || cfg.Inertia.Y <= 0 || cfg.Inertia.Z <= 0 {
		return errors.Errorf("inertia must be positive, got %v", cfg.Inertia)
	}
	if cfg.MotorTimeConstant < 0 {
		return errors.Errorf("motor time constant must not be negative, got %v", cfg.MotorTimeConstant)
	}
	if cfg.Rate <= 0 {
		return errors.Errorf("rate must be positive, got %d", cfg.Rate)
	}
	return cfg.Power.Validate()
}

// Body is the rigid body state in the world frame, z up. Rate is in the body frame, rad/s.
type Body struct {
	Position r3.Vector
	Velocity r3.Vector
	Attitude quat.Number
	Rate     r3.Vector
}

// Stats is what a Quadrotor reports for recording.
type Stats struct {
	Position r3.Vector
	Velocity r3.Vector
	Euler    spatialmath.EulerAngles
	Rate     r3.Vector
	Thrust   float64
}

// Quadrotor integrates the body under the forces its motors produce. It implements
// power.Motors and control.StateSource.
type Quadrotor struct {
	mu     sync.Mutex
	cfg    Config
	dt     float64
	body   Body
	ratios power.Ratios
	// thrusts are the current motor forces, lagging behind ratios.
	thrusts [power.NumMotors]float64
	t       float64
}

// NewQuadrotor returns a vehicle at rest at `position`, level and facing +x.
func NewQuadrotor(cfg Config, position r3.Vector) (*Quadrotor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Quadrotor{
		cfg: cfg,
		dt:  utils.RatePeriod(cfg.Rate),
		body: Body{
			Position: position,
			Attitude: spatialmath.NewQuat(0, 0, 0, 1),
		},
	}, nil
}

// SetRatios implements power.Motors.
func (q *Quadrotor) SetRatios(_ context.Context, ratios power.Ratios) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ratios = ratios
	return nil
}

// State implements control.StateSource. The gyro reads degrees per second.
func (q *Quadrotor) State(_ context.Context) (control.State, control.SensorData, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state := control.State{
		Attitude: control.AttitudeState{Quaternion: q.body.Attitude},
		Kinematic: control.KinematicState{
			Position: q.body.Position,
			Velocity: q.body.Velocity,
		},
	}
	sensors := control.SensorData{Gyro: q.body.Rate.Mul(180 / math.Pi)}
	return state, sensors, nil
}

// Body returns the current rigid body state.
func (q *Quadrotor) Body() Body {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.body
}

// SetBody overrides the rigid body state.
func (q *Quadrotor) SetBody(b Body) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b.Attitude = quat.Scale(1/quat.Abs(b.Attitude), b.Attitude)
	q.body = b
}

// Time returns the simulated time in seconds.
func (q *Quadrotor) Time() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.t
}

// Stats implements ftdc.Statser.
func (q *Quadrotor) Stats() any {
	q.mu.Lock()
	defer q.mu.Unlock()
	forces := q.thrusts
	return Stats{
		Position: q.body.Position,
		Velocity: q.body.Velocity,
		Euler:    spatialmath.QuatToEulerAngles(q.body.Attitude),
		Rate:     q.body.Rate,
		Thrust:   forces[0] + forces[1] + forces[2] + forces[3],
	}
}

func (q *Quadrotor) spinMotors() {
	alpha := 1.0
	if q.cfg.MotorTimeConstant > 0 {
		alpha = 1 - math.Exp(-q.dt/q.cfg.MotorTimeConstant)
	}
	for i, ratio := range q.ratios {
		target := q.cfg.Power.Thrust(ratio)
		q.thrusts[i] += alpha * (target - q.thrusts[i])
	}
}

// wrench returns the collective thrust and the body torque of the motor forces.
func (q *Quadrotor) wrench() (float64, r3.Vector) {
	f := q.thrusts
	l := math.Sqrt2 / 2 * q.cfg.Power.ArmLength
	k := q.cfg.Power.ThrustToTorque
	return f[0] + f[1] + f[2] + f[3], r3.Vector{
		X: l * (f[2] + f[3] - f[0] - f[1]),
		Y: l * (f[1] + f[2] - f[0] - f[3]),
		Z: -k * (f[0] - f[1] + f[2] - f[3]),
	}
}

// Step advances the simulation by one period. The ground at z = 0 stops any descent.
func (q *Quadrotor) Step() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.spinMotors()
	thrust, torque := q.wrench()
	b := &q.body
	I := q.cfg.Inertia

	R := spatialmath.QuatToRotationMatrix(b.Attitude)
	accel := spatialmath.Column(R, 2).Mul(thrust / q.cfg.Mass).Sub(r3.Vector{Z: control.Gravity})
	b.Velocity = b.Velocity.Add(accel.Mul(q.dt))
	b.Position = b.Position.Add(b.Velocity.Mul(q.dt))
	if b.Position.Z <= 0 && b.Velocity.Z < 0 {
		b.Position.Z = 0
		b.Velocity = r3.Vector{}
	}

	Iw := r3.Vector{X: I.X * b.Rate.X, Y: I.Y * b.Rate.Y, Z: I.Z * b.Rate.Z}
	net := torque.Sub(b.Rate.Cross(Iw))
	wdot := r3.Vector{X: net.X / I.X, Y: net.Y / I.Y, Z: net.Z / I.Z}
	b.Rate = b.Rate.Add(wdot.Mul(q.dt))
	b.Attitude = spatialmath.IntegrateAngularVelocity(b.Attitude, b.Rate, q.dt)

	q.t += q.dt
}
