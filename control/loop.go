package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// StateSource supplies the state estimate and raw sensor data for a tick.
type StateSource interface {
	State(ctx context.Context) (State, SensorData, error)
}

// SetpointSource supplies the commander's setpoint for a tick.
type SetpointSource interface {
	Setpoint(ctx context.Context) (Setpoint, error)
}

// CommandSink consumes the controller output, typically power distribution.
type CommandSink interface {
	Apply(ctx context.Context, cmd ControlCommand) error
}

// SetpointFunc adapts a function to a SetpointSource.
type SetpointFunc func(ctx context.Context) (Setpoint, error)

// Setpoint implements SetpointSource.
func (f SetpointFunc) Setpoint(ctx context.Context) (Setpoint, error) {
	return f(ctx)
}

// LoopConfig wires a Loop together.
type LoopConfig struct {
	Controller Controller
	State      StateSource
	Setpoint   SetpointSource
	Sink       CommandSink
	// OnTick, if set, is called after every tick the controller ran on.
	OnTick func(tick uint32, cmd ControlCommand)
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Loop runs a controller at the main loop rate and hands its commands to a sink.
type Loop struct {
	mu      sync.Mutex
	cfg     LoopConfig
	logger  logging.Logger
	tick    atomic.Uint32
	workers utils.StoppableWorkers
}

// NewLoop returns a stopped loop.
func NewLoop(cfg LoopConfig, logger logging.Logger) (*Loop, error) {
	if cfg.Controller == nil || cfg.State == nil || cfg.Setpoint == nil || cfg.Sink == nil {
		return nil, errors.New("loop needs a controller, a state source, a setpoint source and a sink")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Loop{cfg: cfg, logger: logger}, nil
}

// TickCount returns the number of main loop ticks run so far.
func (l *Loop) TickCount() uint32 {
	return l.tick.Load()
}

// Tick runs one main loop iteration. The tick counter advances even if the iteration fails so
// that rate gating stays aligned with time.
func (l *Loop) Tick(ctx context.Context) error {
	tick := l.tick.Inc() - 1
	state, sensors, err := l.cfg.State.State(ctx)
	if err != nil {
		return errors.Wrap(err, "reading state")
	}
	sp, err := l.cfg.Setpoint.Setpoint(ctx)
	if err != nil {
		return errors.Wrap(err, "reading setpoint")
	}
	cmd, ran := l.cfg.Controller.RunTick(state, sensors, sp, tick)
	if !ran {
		return nil
	}
	if err := l.cfg.Sink.Apply(ctx, cmd); err != nil {
		return errors.Wrapf(err, "applying command at tick %d", tick)
	}
	if l.cfg.OnTick != nil {
		l.cfg.OnTick(tick, cmd)
	}
	return nil
}

// Start runs the loop in the background at utils.MainLoopRate until Stop is called.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return errors.New("loop already running")
	}
	period := time.Duration(utils.RatePeriod(utils.MainLoopRate) * float64(time.Second))
	l.logger.Debugw("starting control loop", "period", period)
	l.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		ticker := l.cfg.Clock.Ticker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := l.Tick(ctx); err != nil {
				l.logger.Warnw("control loop tick failed", "error", err)
			}
		}
	})
	return nil
}

// Stop stops the background loop and waits for it to exit. It is a no-op if the loop is stopped.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers == nil {
		return
	}
	l.workers.Stop()
	l.workers = nil
	l.logger.Debugw("stopped control loop", "ticks", l.TickCount())
}
