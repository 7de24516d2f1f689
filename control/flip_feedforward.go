package control

import (
	"fmt"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// FlipSegment is one constant piece of the open-loop flip.
type FlipSegment struct {
	// Accel is the collective thrust per unit mass, m/s^2.
	Accel float64 `yaml:"accel"`
	// AngularAccel is the pitch angular acceleration, rad/s^2.
	AngularAccel float64 `yaml:"angular_accel"`
	// Duration in seconds.
	Duration float64 `yaml:"duration"`
}

// FlipFeedForwardConfig configures a FlipFeedForward supervisor.
type FlipFeedForwardConfig struct {
	Segments []FlipSegment `yaml:"segments"`
	Mass     float64       `yaml:"mass"`
	Ixx      float64       `yaml:"ixx"`
	// After a flip, leaving |x| <= BoundXY, |y| <= BoundXY or z >= MinZ triggers an emergency stop.
	BoundXY float64 `yaml:"bound_xy"`
	MinZ    float64 `yaml:"min_z"`
	// AttitudeRate is the frequency, in Hz, the supervisor runs at within the main loop.
	AttitudeRate int `yaml:"attitude_rate"`
}

// DefaultFlipFeedForwardConfig returns the five segment flip identified for a Crazyflie 2.1.
func DefaultFlipFeedForwardConfig() FlipFeedForwardConfig {
	return FlipFeedForwardConfig{
		Segments: []FlipSegment{
			{Accel: 0.5259, AngularAccel: -42.346, Duration: 0.08219},
			{Accel: 0.3795, AngularAccel: 297.346, Duration: 0.22265},
			{Accel: 0.17489, AngularAccel: 0, Duration: 0.1209},
			{Accel: 0.3795, AngularAccel: -297.346, Duration: 0.22193},
			{Accel: 0.50265, AngularAccel: 59.2655, Duration: 0.05508},
		},
		Mass:         0.032,
		Ixx:          0.0000158,
		BoundXY:      1,
		MinZ:         0.2,
		AttitudeRate: utils.Rate500Hz,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg FlipFeedForwardConfig) Validate() error {
	if len(cfg.Segments) == 0 {
		return errors.New("flip needs at least one segment")
	}
	for i, seg := range cfg.Segments {
		if seg.Duration < 0 {
			return errors.Errorf("flip segment %d has negative duration %v", i+1, seg.Duration)
		}
	}
	if cfg.Mass <= 0 || cfg.Ixx <= 0 {
		return errors.Errorf("flip mass and ixx must be positive, got %v and %v", cfg.Mass, cfg.Ixx)
	}
	if cfg.AttitudeRate <= 0 || cfg.AttitudeRate > utils.MainLoopRate {
		return utils.NewOutOfRangeError("attitude rate", float64(cfg.AttitudeRate), 1, utils.MainLoopRate)
	}
	return nil
}

// FallbackController is the closed-loop controller a FlipFeedForward hands control to outside
// the flip.
type FallbackController interface {
	Controller
	Init()
}

// FlipFeedForward runs an open-loop flip when asked to and delegates to a fallback controller
// otherwise. Flip commands are in force/torque units.
type FlipFeedForward struct {
	mu       sync.Mutex
	cfg      FlipFeedForwardConfig
	fallback FallbackController
	logger   logging.Logger
	// emergencyStop is called once per tick while the vehicle is out of bounds after a flip.
	emergencyStop func(reason string)

	dt       float64
	t        float64
	flipping bool
	wasFlip  bool
	last     ControlCommand
}

// NewFlipFeedForward returns a supervisor around `fallback`.
func NewFlipFeedForward(
	cfg FlipFeedForwardConfig,
	fallback FallbackController,
	emergencyStop func(reason string),
	logger logging.Logger,
) (*FlipFeedForward, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fallback == nil {
		return nil, errors.New("flip supervisor needs a fallback controller")
	}
	if emergencyStop == nil {
		emergencyStop = func(string) {}
	}
	return &FlipFeedForward{
		cfg:           cfg,
		fallback:      fallback,
		logger:        logger,
		emergencyStop: emergencyStop,
		dt:            utils.RatePeriod(cfg.AttitudeRate),
	}, nil
}

// Init resets the supervisor and its fallback.
func (f *FlipFeedForward) Init() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = 0
	f.flipping = false
	f.wasFlip = false
	f.last = ControlCommand{}
	f.fallback.Init()
}

// StartFlip starts the open-loop flip on the next tick.
func (f *FlipFeedForward) StartFlip() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger.Infow("starting open-loop flip", "duration", f.duration())
	f.t = 0
	f.flipping = true
	f.wasFlip = false
}

// Flipping reports whether the open-loop flip is running.
func (f *FlipFeedForward) Flipping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flipping
}

func (f *FlipFeedForward) duration() float64 {
	var total float64
	for _, seg := range f.cfg.Segments {
		total += seg.Duration
	}
	return total
}

// segmentAt returns the segment active `t` seconds into the flip, and false once the flip is over.
func (f *FlipFeedForward) segmentAt(t float64) (FlipSegment, bool) {
	var end float64
	for _, seg := range f.cfg.Segments {
		end += seg.Duration
		if t <= end {
			return seg, true
		}
	}
	return FlipSegment{}, false
}

// RunTick implements Controller.
func (f *FlipFeedForward) RunTick(state State, sensors SensorData, sp Setpoint, tick uint32) (ControlCommand, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !utils.RateDoExecute(f.cfg.AttitudeRate, tick) {
		return f.last, false
	}

	if f.flipping {
		if seg, ok := f.segmentAt(f.t); ok {
			f.t += f.dt
			cmd := ControlCommand{ForceTorque: true, Thrust: seg.Accel * f.cfg.Mass}
			if cmd.Thrust > 0 {
				cmd.Torque = r3.Vector{Y: f.cfg.Ixx * seg.AngularAccel}
			} else {
				cmd.Thrust = 0
				f.t = 0
			}
			f.last = cmd
			return cmd, true
		}
		f.logger.Infow("open-loop flip finished", "t", f.t)
		f.flipping = false
		f.wasFlip = true
	}

	if f.wasFlip {
		pos := state.Kinematic.Position
		if reason := f.outOfBounds(pos); reason != "" {
			f.logger.Warnw("out of bounds after flip", "position", pos, "reason", reason)
			f.emergencyStop(reason)
		}
	}

	cmd, ran := f.fallback.RunTick(state, sensors, sp, tick)
	f.last = cmd
	return cmd, ran
}

func (f *FlipFeedForward) outOfBounds(pos r3.Vector) string {
	switch {
	case pos.X > f.cfg.BoundXY || pos.X < -f.cfg.BoundXY:
		return fmt.Sprintf("x %.3f outside ±%.3f", pos.X, f.cfg.BoundXY)
	case pos.Y > f.cfg.BoundXY || pos.Y < -f.cfg.BoundXY:
		return fmt.Sprintf("y %.3f outside ±%.3f", pos.Y, f.cfg.BoundXY)
	case pos.Z < f.cfg.MinZ:
		return fmt.Sprintf("z %.3f below %.3f", pos.Z, f.cfg.MinZ)
	}
	return ""
}

// FlipParamGroup is the group the flip supervisor registers its segments under.
const FlipParamGroup = "ctrlFlip"

// RegisterParams exposes the segments as U<n>, Th<n> and T<n>, numbered from 1.
func (f *FlipFeedForward) RegisterParams(r *ParamRegistry) error {
	for i := range f.cfg.Segments {
		i := i
		for prefix, field := range map[string]func(*FlipSegment) *float64{
			"U":  func(s *FlipSegment) *float64 { return &s.Accel },
			"Th": func(s *FlipSegment) *float64 { return &s.AngularAccel },
			"T":  func(s *FlipSegment) *float64 { return &s.Duration },
		} {
			field := field
			err := r.Register(Param{
				Group: FlipParamGroup,
				Name:  fmt.Sprintf("%s%d", prefix, i+1),
				Get: func() float64 {
					f.mu.Lock()
					defer f.mu.Unlock()
					return *field(&f.cfg.Segments[i])
				},
				Set: func(v float64) error {
					f.mu.Lock()
					defer f.mu.Unlock()
					if f.flipping {
						return errors.New("cannot change the flip while it runs")
					}
					old := *field(&f.cfg.Segments[i])
					*field(&f.cfg.Segments[i]) = v
					if err := f.cfg.Validate(); err != nil {
						*field(&f.cfg.Segments[i]) = old
						return err
					}
					return nil
				},
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
