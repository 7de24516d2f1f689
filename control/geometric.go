package control

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// Config configures a Geometric controller.
type Config struct {
	Gains Gains
	// AttitudeRate is the frequency, in Hz, the controller runs at within the main loop.
	AttitudeRate int
	Mode         Mode
}

// DefaultConfig returns the default gains at 500 Hz in position hold.
func DefaultConfig() Config {
	return Config{
		Gains:        DefaultGains(),
		AttitudeRate: utils.Rate500Hz,
		Mode:         ModePositionHold,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.AttitudeRate <= 0 || cfg.AttitudeRate > utils.MainLoopRate {
		return utils.NewOutOfRangeError("attitude rate", float64(cfg.AttitudeRate), 1, utils.MainLoopRate)
	}
	return cfg.Gains.Validate()
}

// Telemetry is a snapshot of the controller after its last tick.
type Telemetry struct {
	Mode    Mode
	Time    float64
	Command ControlCommand

	ErrorR r3.Vector
	ErrorW r3.Vector
	Psi    float64

	ErrDRoll  float64
	ErrDPitch float64

	TargetThrust    r3.Vector
	DesiredRate     r3.Vector
	DesiredThrust   float64
	ProjectedThrust float64
	Correction      r3.Vector

	Pitch        float64
	DesiredPitch float64
}

// Geometric is a geometric tracking controller on SE(3). It owns all of its state; a tick
// observes either the configuration before or after a concurrent SetMode/SetGains call, never a
// mix of the two.
type Geometric struct {
	mu     sync.Mutex
	logger logging.Logger

	gains        Gains
	attitudeRate int
	dt           float64
	mode         Mode
	correction   Correction

	// t is the time, in seconds, spent in the flip since the last reset.
	t     float64
	deriv *DerivativeFilter

	last      ControlCommand
	telemetry Telemetry
}

// NewGeometric returns a validated, initialized controller.
func NewGeometric(cfg Config, logger logging.Logger) (*Geometric, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dt := utils.RatePeriod(cfg.AttitudeRate)
	g := &Geometric{
		logger:       logger,
		gains:        cfg.Gains,
		attitudeRate: cfg.AttitudeRate,
		dt:           dt,
		mode:         cfg.Mode,
		correction:   NoCorrection{},
		deriv:        NewDerivativeFilter(dt),
	}
	g.Init()
	return g, nil
}

// Init resets all state: the flip time, the derivative history and the last command.
func (g *Geometric) Init() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t = 0
	g.deriv.Reset()
	g.last = ControlCommand{}
	g.telemetry = Telemetry{Mode: g.mode}
}

// Reset restarts the flip time.
func (g *Geometric) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t = 0
}

// SetMode switches the tracked trajectory and restarts the flip time.
func (g *Geometric) SetMode(mode Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if mode != g.mode {
		g.logger.Infow("controller mode changed", "from", g.mode.String(), "to", mode.String(), "t", g.t)
	}
	g.mode = mode
	g.t = 0
}

// Mode returns the tracked trajectory.
func (g *Geometric) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Gains returns the current gains.
func (g *Geometric) Gains() Gains {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gains
}

// SetGains replaces all gains at once.
func (g *Geometric) SetGains(gains Gains) error {
	if err := gains.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gains = gains
	g.logger.Debugw("gains updated", "gains", gains)
	return nil
}

// SetCorrection installs the correction applied while flipping. nil restores NoCorrection.
func (g *Geometric) SetCorrection(c Correction) {
	if c == nil {
		c = NoCorrection{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.correction = c
}

// Time returns the flip time in seconds.
func (g *Geometric) Time() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t
}

// Telemetry returns a snapshot of the last tick.
func (g *Geometric) Telemetry() Telemetry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.telemetry
}

// Stats returns the telemetry for recording.
func (g *Geometric) Stats() any {
	return g.Telemetry()
}

// RunTick computes the command for main loop tick `tick`. On ticks that are not aligned with
// the attitude rate it returns the previous command and false.
func (g *Geometric) RunTick(state State, sensors SensorData, sp Setpoint, tick uint32) (ControlCommand, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !utils.RateDoExecute(g.attitudeRate, tick) {
		return g.last, false
	}
	gains := g.gains

	R := spatialmath.QuatToRotationMatrix(state.Attitude.Quaternion)
	w := measuredRate(sensors.Gyro)
	cross := gyroFeedForward(w, gains)
	target := targetThrust(state.Kinematic, sp, gains)

	var ref reference
	switch g.mode {
	case ModeFlip:
		ref = flipReference(g.t, gains)
	default:
		ref = positionHoldReference(target, sp, R)
	}

	eR, ew, psi := AttitudeError(R, ref.Rd, w, ref.Wd)
	errDRoll, errDPitch := g.deriv.Update(g.mode, ref.Wd, w)
	torque := mixTorque(g.mode, cross, eR, ew, errDRoll, errDPitch, gains)

	var correction r3.Vector
	if g.mode == ModeFlip {
		correction = g.correction.Correct(CorrectionInput{Attitude: state.Attitude.Quaternion, Rate: w})
		torque.X -= correction.X
		torque.Y -= correction.Y
	}

	cmd := scaleOutputs(ref.Thrust, torque, sp, gains)

	g.telemetry = Telemetry{
		Mode:            g.mode,
		Time:            g.t,
		Command:         cmd,
		ErrorR:          eR,
		ErrorW:          ew,
		Psi:             psi,
		ErrDRoll:        errDRoll,
		ErrDPitch:       errDPitch,
		TargetThrust:    target,
		DesiredRate:     ref.Wd,
		DesiredThrust:   ref.Thrust,
		ProjectedThrust: projectedThrust(target, R),
		Correction:      correction,
		Pitch:           spatialmath.QuatToEulerAngles(state.Attitude.Quaternion).Pitch,
		DesiredPitch:    ref.DesiredPitch,
	}

	if g.mode == ModeFlip {
		g.t += g.dt
	}
	g.last = cmd
	return cmd, true
}
