// Package power turns controller commands into motor power ratios for an X configuration
// quadrotor.
//
// Motors are numbered clockwise from the front right:
//
//	m4   m1
//	  \ /
//	  / \
//	m3   m2
package power

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// NumMotors is the number of rotors.
const NumMotors = 4

// MaxRatio is the full scale motor power ratio.
const MaxRatio = math.MaxUint16

// Ratios holds one power ratio per motor, m1 first.
type Ratios [NumMotors]uint16

// Motors accepts motor power ratios.
type Motors interface {
	SetRatios(ctx context.Context, ratios Ratios) error
}

// Config describes the propellers and the frame.
type Config struct {
	// Thrust per motor in newtons is A*pwm^2 + B*pwm with pwm in [0, 1].
	PWMToThrustA float64 `yaml:"pwm_to_thrust_a"`
	PWMToThrustB float64 `yaml:"pwm_to_thrust_b"`
	// ArmLength is the distance from the centre to a rotor, m.
	ArmLength float64 `yaml:"arm_length"`
	// ThrustToTorque is the rotor drag torque per newton of thrust, m.
	ThrustToTorque float64 `yaml:"thrust_to_torque"`
}

// DefaultConfig returns the constants identified for a Crazyflie 2.1.
func DefaultConfig() Config {
	return Config{
		PWMToThrustA:   0.091492681,
		PWMToThrustB:   0.067673604,
		ArmLength:      0.046,
		ThrustToTorque: 0.005964552,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.PWMToThrustA <= 0 || cfg.PWMToThrustB < 0 {
		return errors.Errorf("invalid thrust curve %v*pwm^2 + %v*pwm", cfg.PWMToThrustA, cfg.PWMToThrustB)
	}
	if cfg.ArmLength <= 0 {
		return errors.Errorf("arm length must be positive, got %v", cfg.ArmLength)
	}
	if cfg.ThrustToTorque <= 0 {
		return errors.Errorf("thrust to torque must be positive, got %v", cfg.ThrustToTorque)
	}
	return nil
}

// Thrust returns the force, in newtons, of one motor running at `ratio`.
func (cfg Config) Thrust(ratio uint16) float64 {
	pwm := float64(ratio) / MaxRatio
	return cfg.PWMToThrustA*pwm*pwm + cfg.PWMToThrustB*pwm
}

// RatioForThrust inverts Thrust. Negative forces give zero.
func (cfg Config) RatioForThrust(force float64) float64 {
	force = math.Max(force, 0)
	a, b := cfg.PWMToThrustA, cfg.PWMToThrustB
	pwm := (-b + math.Sqrt(b*b+4*a*force)) / (2 * a)
	return pwm * MaxRatio
}

// Stats is what a Distributor reports for recording.
type Stats struct {
	M1, M2, M3, M4 uint16
	Average        [NumMotors]float64
	Samples        float64
}

// Distributor mixes commands into motor ratios. Besides plain mixing it can average the mixed
// ratios over time, scale later ratios by that average to compensate for uneven motors, or pin
// every motor to a fixed override.
type Distributor struct {
	mu     sync.Mutex
	cfg    Config
	motors Motors
	logger logging.Logger

	averaging   bool
	feedForward bool
	samples     float64
	average     [NumMotors]float64

	overrideEnabled bool
	override        Ratios

	last Ratios
}

// NewDistributor returns a distributor driving `motors`.
func NewDistributor(cfg Config, motors Motors, logger logging.Logger) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if motors == nil {
		return nil, errors.New("power distribution needs motors")
	}
	return &Distributor{cfg: cfg, motors: motors, logger: logger}, nil
}

// Init clears the running average and disables feed-forward.
func (d *Distributor) Init() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = 0
	d.average = [NumMotors]float64{}
	d.feedForward = false
}

// SetAveraging starts or stops accumulating the running average.
func (d *Distributor) SetAveraging(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.averaging = enabled
}

// SetFeedForward enables scaling by the running average. It only applies while not averaging.
func (d *Distributor) SetFeedForward(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feedForward = enabled
}

// SetOverride pins every motor to `ratios` until cleared by a nil argument.
func (d *Distributor) SetOverride(ratios *Ratios) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ratios == nil {
		d.overrideEnabled = false
		return
	}
	d.overrideEnabled = true
	d.override = *ratios
}

// Last returns the ratios most recently written.
func (d *Distributor) Last() Ratios {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Stats implements ftdc.Statser.
func (d *Distributor) Stats() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		M1: d.last[0], M2: d.last[1], M3: d.last[2], M4: d.last[3],
		Average: d.average,
		Samples: d.samples,
	}
}

// Mix returns the unlimited motor ratios for `cmd`.
func (d *Distributor) Mix(cmd control.ControlCommand) [NumMotors]float64 {
	if cmd.ForceTorque {
		return d.mixForceTorque(cmd)
	}
	t := cmd.Thrust
	r, p, y := float64(cmd.Roll), float64(cmd.Pitch), float64(cmd.Yaw)
	return [NumMotors]float64{
		t - r + p + y,
		t - r - p - y,
		t + r - p + y,
		t + r + p - y,
	}
}

func (d *Distributor) mixForceTorque(cmd control.ControlCommand) [NumMotors]float64 {
	arm := math.Sqrt2 / 2 * d.cfg.ArmLength
	rollPart := 0.25 / arm * cmd.Torque.X
	pitchPart := 0.25 / arm * cmd.Torque.Y
	yawPart := 0.25 * cmd.Torque.Z / d.cfg.ThrustToTorque
	thrustPart := 0.25 * cmd.Thrust

	forces := [NumMotors]float64{
		thrustPart - rollPart + pitchPart + yawPart,
		thrustPart - rollPart - pitchPart - yawPart,
		thrustPart + rollPart - pitchPart + yawPart,
		thrustPart + rollPart + pitchPart - yawPart,
	}
	var out [NumMotors]float64
	for i, f := range forces {
		out[i] = d.cfg.RatioForThrust(f)
	}
	return out
}

// Apply implements control.CommandSink.
func (d *Distributor) Apply(ctx context.Context, cmd control.ControlCommand) error {
	d.mu.Lock()
	mixed := d.Mix(cmd)

	if d.averaging {
		n := d.samples
		for i, m := range mixed {
			d.average[i] = n/(n+1)*d.average[i] + m/(n+1)
		}
		d.samples++
	}

	var ratios Ratios
	switch {
	case d.overrideEnabled:
		ratios = d.override
	default:
		if !d.averaging && d.feedForward {
			mean := (d.average[0] + d.average[1] + d.average[2] + d.average[3]) / NumMotors
			if mean > 0 {
				for i := range mixed {
					mixed[i] = math.Trunc(mixed[i] * d.average[i] / mean)
				}
			}
		}
		for i, m := range mixed {
			ratios[i] = limitRatio(m)
		}
	}
	d.last = ratios
	d.mu.Unlock()

	return d.motors.SetRatios(ctx, ratios)
}

// Stop turns every motor off.
func (d *Distributor) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.last = Ratios{}
	d.mu.Unlock()
	return d.motors.SetRatios(ctx, Ratios{})
}

func limitRatio(v float64) uint16 {
	return uint16(utils.Clamp(v, 0, MaxRatio))
}
