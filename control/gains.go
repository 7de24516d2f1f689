package control

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Gravity is the gravitational acceleration in m/s^2.
const Gravity = 9.81

// Gains are the tunable constants of the geometric controller.
type Gains struct {
	// Position and velocity error gains.
	KrXY float64 `yaml:"kr_xy"`
	KrZ  float64 `yaml:"kr_z"`
	KvXY float64 `yaml:"kv_xy"`
	KvZ  float64 `yaml:"kv_z"`

	// Attitude and rate error gains.
	KRXY float64 `yaml:"kR_xy"`
	KRZ  float64 `yaml:"kR_z"`
	KwXY float64 `yaml:"kw_xy"`
	KwZ  float64 `yaml:"kw_z"`

	// KdOmegaRP weighs the derivative of the roll/pitch rate error.
	KdOmegaRP float64 `yaml:"kd_omega_rp"`

	Mass float64 `yaml:"mass"`
	Ixx  float64 `yaml:"ixx"`
	Izz  float64 `yaml:"izz"`

	ThrustScale float64 `yaml:"thrust_scale"`
	ArmLength   float64 `yaml:"arm_length"`
	YawArmRatio float64 `yaml:"yaw_arm_ratio"`

	// Timescale stretches the flip trajectory.
	Timescale float64 `yaml:"timescale"`
}

// DefaultGains returns the gains tuned for a Crazyflie 2.1.
func DefaultGains() Gains {
	return Gains{
		KrXY:        0.4,
		KrZ:         1.25,
		KvXY:        0.2,
		KvZ:         0.4,
		KRXY:        0.017,
		KRZ:         0.011,
		KwXY:        0.0049,
		KwZ:         0.00225,
		KdOmegaRP:   0.000049,
		Mass:        0.027,
		Ixx:         0.000014,
		Izz:         0.0000217,
		ThrustScale: 132000,
		ArmLength:   0.0325,
		YawArmRatio: 0.025,
		Timescale:   1,
	}
}

// Validate ensures all parts of the gains are valid.
func (g Gains) Validate() error {
	var errs error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"mass", g.Mass},
		{"ixx", g.Ixx},
		{"izz", g.Izz},
		{"thrust_scale", g.ThrustScale},
		{"arm_length", g.ArmLength},
		{"yaw_arm_ratio", g.YawArmRatio},
		{"timescale", g.Timescale},
	} {
		if !(field.value > 0) {
			errs = multierr.Append(errs, errors.Errorf("%s must be positive, got %v", field.name, field.value))
		}
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"kr_xy", g.KrXY},
		{"kr_z", g.KrZ},
		{"kv_xy", g.KvXY},
		{"kv_z", g.KvZ},
		{"kR_xy", g.KRXY},
		{"kR_z", g.KRZ},
		{"kw_xy", g.KwXY},
		{"kw_z", g.KwZ},
		{"kd_omega_rp", g.KdOmegaRP},
	} {
		if field.value < 0 {
			errs = multierr.Append(errs, errors.Errorf("%s must not be negative, got %v", field.name, field.value))
		}
	}
	return errs
}

// fields exposes every gain by its parameter name.
func (g *Gains) fields() map[string]*float64 {
	return map[string]*float64{
		"kr_xy":         &g.KrXY,
		"kr_z":          &g.KrZ,
		"kv_xy":         &g.KvXY,
		"kv_z":          &g.KvZ,
		"kR_xy":         &g.KRXY,
		"kR_z":          &g.KRZ,
		"kw_xy":         &g.KwXY,
		"kw_z":          &g.KwZ,
		"kd_omega_rp":   &g.KdOmegaRP,
		"mass":          &g.Mass,
		"ixx":           &g.Ixx,
		"izz":           &g.Izz,
		"thrust_scale":  &g.ThrustScale,
		"arm_length":    &g.ArmLength,
		"yaw_arm_ratio": &g.YawArmRatio,
		"timescale":     &g.Timescale,
	}
}
