package cli

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/config"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/power"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/sim"
)

// vehicle is a simulated quadrotor with the full control stack wired to it.
type vehicle struct {
	logger logging.Logger
	geom   *control.Geometric
	flip   *control.FlipFeedForward
	dist   *power.Distributor
	quad   *sim.Quadrotor
	params *control.ParamRegistry
	loop   *control.Loop

	mu         sync.Mutex
	stopReason string
}

// newVehicle builds the stack around a simulator hovering at `hover`. `onTick` may be nil.
func newVehicle(
	cfg *config.Config,
	logger logging.Logger,
	hover r3.Vector,
	onTick func(tick uint32, cmd control.ControlCommand),
) (*vehicle, error) {
	v := &vehicle{logger: logger, params: control.NewParamRegistry()}

	var err error
	if v.quad, err = sim.NewQuadrotor(cfg.Sim, hover); err != nil {
		return nil, err
	}
	if v.geom, err = control.NewGeometric(cfg.ControllerConfig(), logger.Sublogger("geom")); err != nil {
		return nil, err
	}
	correction, err := cfg.BuildCorrection()
	if err != nil {
		return nil, err
	}
	v.geom.SetCorrection(correction)
	if v.flip, err = control.NewFlipFeedForward(cfg.FlipConfig(), v.geom, v.emergencyStop, logger.Sublogger("flip")); err != nil {
		return nil, err
	}
	if v.dist, err = power.NewDistributor(cfg.Power, v.quad, logger.Sublogger("power")); err != nil {
		return nil, err
	}

	for _, register := range []func(*control.ParamRegistry) error{
		v.geom.RegisterParams,
		v.flip.RegisterParams,
		v.dist.RegisterParams,
	} {
		if err := register(v.params); err != nil {
			return nil, err
		}
	}

	setpoint := control.HoverSetpoint(hover)
	hold := control.SetpointFunc(func(context.Context) (control.Setpoint, error) {
		return setpoint, nil
	})
	v.loop, err = control.NewLoop(control.LoopConfig{
		Controller: v.flip,
		State:      v.quad,
		Setpoint:   hold,
		Sink:       v,
		OnTick:     onTick,
	}, logger.Sublogger("loop"))
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (v *vehicle) emergencyStop(reason string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopReason == "" {
		v.logger.Errorw("emergency stop", "reason", reason)
		v.stopReason = reason
	}
}

// StopReason returns why the motors were cut, or "" if they were not.
func (v *vehicle) StopReason() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopReason
}

// Apply implements control.CommandSink. Once stopped, the motors stay off.
func (v *vehicle) Apply(ctx context.Context, cmd control.ControlCommand) error {
	if v.StopReason() != "" {
		return v.dist.Stop(ctx)
	}
	return v.dist.Apply(ctx, cmd)
}
