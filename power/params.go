package power

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
)

// ParamGroup is the group a Distributor registers its switches under.
const ParamGroup = "powerDist"

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RegisterParams exposes the override (enable, m1..m4), averaging (isAv) and feed-forward (isFF)
// switches.
func (d *Distributor) RegisterParams(r *control.ParamRegistry) error {
	flags := map[string]*bool{
		"enable": &d.overrideEnabled,
		"isAv":   &d.averaging,
		"isFF":   &d.feedForward,
	}
	for name, flag := range flags {
		flag := flag
		if err := r.Register(control.Param{
			Group: ParamGroup,
			Name:  name,
			Get: func() float64 {
				d.mu.Lock()
				defer d.mu.Unlock()
				return boolToFloat(*flag)
			},
			Set: func(v float64) error {
				d.mu.Lock()
				defer d.mu.Unlock()
				*flag = v != 0
				return nil
			},
		}); err != nil {
			return err
		}
	}

	for i := 0; i < NumMotors; i++ {
		i := i
		if err := r.Register(control.Param{
			Group: ParamGroup,
			Name:  fmt.Sprintf("m%d", i+1),
			Get: func() float64 {
				d.mu.Lock()
				defer d.mu.Unlock()
				return float64(d.override[i])
			},
			Set: func(v float64) error {
				if v < 0 || v > MaxRatio {
					return errors.Errorf("motor power must be in [0, %d], got %v", MaxRatio, v)
				}
				d.mu.Lock()
				defer d.mu.Unlock()
				d.override[i] = uint16(v)
				return nil
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
