package control

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/interp"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// CorrectionInput is what a Correction sees on a tick.
type CorrectionInput struct {
	Attitude quat.Number
	// Rate is the measured body rate in the controller frame, rad/s.
	Rate r3.Vector
}

// features is the regressor shared by the learned corrections: the x and y components of the
// attitude quaternion and the roll and pitch rates divided by ten.
func (in CorrectionInput) features() [4]float64 {
	return [4]float64{in.Attitude.Imag, in.Attitude.Jmag, in.Rate.X / 10, in.Rate.Y / 10}
}

// correctionScale converts learned outputs to newton metres.
const correctionScale = 200

// A Correction is an additional torque, in newton metres, subtracted from the torque command
// while flipping. Implementations must not allocate.
type Correction interface {
	Correct(in CorrectionInput) r3.Vector
}

// NoCorrection never corrects.
type NoCorrection struct{}

// Correct returns zero.
func (NoCorrection) Correct(CorrectionInput) r3.Vector {
	return r3.Vector{}
}

// LookupCorrection interpolates precomputed roll and pitch corrections over the four features.
// Interpolated values are clamped to the range of the table samples, so extrapolation never
// exceeds what the table was trained on.
type LookupCorrection struct {
	roll, pitch *interp.Table
}

// NewLookupCorrection validates that both tables are four dimensional.
func NewLookupCorrection(roll, pitch *interp.Table) (*LookupCorrection, error) {
	if roll == nil || pitch == nil {
		return nil, errors.New("lookup correction needs both a roll and a pitch table")
	}
	if roll.Dims() != 4 || pitch.Dims() != 4 {
		return nil, errors.Errorf("lookup correction tables must be 4 dimensional, got %d and %d",
			roll.Dims(), pitch.Dims())
	}
	return &LookupCorrection{roll: roll, pitch: pitch}, nil
}

// Correct evaluates both tables.
func (c *LookupCorrection) Correct(in CorrectionInput) r3.Vector {
	x := in.features()
	u0 := c.roll.Evaluate4D(x[0], x[1], x[2], x[3])
	u1 := c.pitch.Evaluate4D(x[0], x[1], x[2], x[3])
	return r3.Vector{
		X: utils.Clamp(u0, c.roll.Min(), c.roll.Max()) / correctionScale,
		Y: utils.Clamp(u1, c.pitch.Min(), c.pitch.Max()) / correctionScale,
	}
}

// KernelModel is a squared exponential kernel regression for one axis:
// u(x) = Σᵢ αᵢ·sf·exp(−½·Σⱼ λⱼ·(xⱼ − Xᵢⱼ)²).
type KernelModel struct {
	Lambda [4]float64 `yaml:"lambda"`
	Sf     float64    `yaml:"sf"`
	Alpha  []float64  `yaml:"alpha"`
}

// KernelCorrection regresses the roll and pitch corrections from training inputs.
type KernelCorrection struct {
	inputs      [][4]float64
	roll, pitch KernelModel
	k           []float64
}

// NewKernelCorrection checks that each model has one weight per training input.
func NewKernelCorrection(inputs [][4]float64, roll, pitch KernelModel) (*KernelCorrection, error) {
	if len(inputs) == 0 {
		return nil, errors.New("kernel correction needs training inputs")
	}
	for name, model := range map[string]KernelModel{"roll": roll, "pitch": pitch} {
		if len(model.Alpha) != len(inputs) {
			return nil, errors.Errorf("%s kernel model has %d weights for %d inputs", name, len(model.Alpha), len(inputs))
		}
	}
	return &KernelCorrection{
		inputs: inputs,
		roll:   roll,
		pitch:  pitch,
		k:      make([]float64, len(inputs)),
	}, nil
}

// Correct evaluates both models. The kernel scratch buffer is owned by c, so Correct must not be
// called concurrently on the same value.
func (c *KernelCorrection) Correct(in CorrectionInput) r3.Vector {
	x := in.features()
	return r3.Vector{
		X: c.evaluate(&c.roll, x) / correctionScale,
		Y: c.evaluate(&c.pitch, x) / correctionScale,
	}
}

func (c *KernelCorrection) evaluate(model *KernelModel, x [4]float64) float64 {
	for i, xi := range c.inputs {
		var exponent float64
		for j := range x {
			exponent += -0.5 * model.Lambda[j] * utils.Square(x[j]-xi[j])
		}
		c.k[i] = model.Sf * math.Exp(exponent)
	}
	return floats.Dot(c.k, model.Alpha)
}
