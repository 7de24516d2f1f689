package config

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
)

// CorrectionType selects how the flip torque correction is computed.
type CorrectionType string

// The supported correction types.
const (
	CorrectionNone   CorrectionType = "none"
	CorrectionLookup CorrectionType = "lookup"
	CorrectionKernel CorrectionType = "kernel"
)

// Correction configures the learned torque correction applied while flipping.
type Correction struct {
	Type   CorrectionType `yaml:"type"`
	Lookup struct {
		RollTable  string `yaml:"roll_table"`
		PitchTable string `yaml:"pitch_table"`
	} `yaml:"lookup"`
	Kernel struct {
		Inputs [][4]float64        `yaml:"inputs"`
		Roll   control.KernelModel `yaml:"roll"`
		Pitch  control.KernelModel `yaml:"pitch"`
	} `yaml:"kernel"`
}

// Validate ensures all parts of the config are valid.
func (c Correction) Validate(path string) error {
	switch c.Type {
	case CorrectionNone, "":
	case CorrectionLookup:
		if c.Lookup.RollTable == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "lookup.roll_table")
		}
		if c.Lookup.PitchTable == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "lookup.pitch_table")
		}
	case CorrectionKernel:
		if len(c.Kernel.Inputs) == 0 {
			return goutils.NewConfigValidationFieldRequiredError(path, "kernel.inputs")
		}
	default:
		return goutils.NewConfigValidationError(path,
			errors.Errorf("unknown correction type %q, expected none, lookup or kernel", c.Type))
	}
	return nil
}
