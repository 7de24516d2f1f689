package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
)

type staticState struct {
	state State
	err   error
}

func (s staticState) State(context.Context) (State, SensorData, error) {
	return s.state, SensorData{}, s.err
}

type recordingSink struct {
	mu   sync.Mutex
	cmds []ControlCommand
	err  error
}

func (s *recordingSink) Apply(_ context.Context, cmd ControlCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cmds)
}

func hoverSetpoint(z float64) SetpointSource {
	return SetpointFunc(func(context.Context) (Setpoint, error) {
		return HoverSetpoint(r3.Vector{Z: z}), nil
	})
}

func TestNewLoop(t *testing.T) {
	_, err := NewLoop(LoopConfig{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeError, "loop needs a controller, a state source, a setpoint source and a sink")
}

func TestLoopTick(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	var onTicks []uint32
	l, err := NewLoop(LoopConfig{
		Controller: newTestGeometric(t),
		State:      staticState{state: levelState(r3.Vector{Z: 1})},
		Setpoint:   hoverSetpoint(1),
		Sink:       sink,
		OnTick:     func(tick uint32, _ ControlCommand) { onTicks = append(onTicks, tick) },
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 10; i++ {
		test.That(t, l.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, l.TickCount(), test.ShouldEqual, uint32(10))
	// The controller runs at half the main loop rate.
	test.That(t, sink.count(), test.ShouldEqual, 5)
	test.That(t, onTicks, test.ShouldResemble, []uint32{0, 2, 4, 6, 8})
	test.That(t, sink.cmds[0].Thrust, test.ShouldBeGreaterThan, 0)

	// Off-rate ticks never reach the sink.
	sink.err = errors.New("motors offline")
	test.That(t, l.Tick(ctx), test.ShouldBeError, "applying command at tick 10: motors offline")
	test.That(t, l.Tick(ctx), test.ShouldBeNil)
}

func TestLoopTickErrors(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{err: errors.New("motors offline")}
	l, err := NewLoop(LoopConfig{
		Controller: newTestGeometric(t),
		State:      staticState{state: levelState(r3.Vector{Z: 1})},
		Setpoint:   hoverSetpoint(1),
		Sink:       sink,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Tick(ctx), test.ShouldBeError, "applying command at tick 0: motors offline")

	l.cfg.State = staticState{err: errors.New("no estimate")}
	test.That(t, l.Tick(ctx), test.ShouldBeError, "reading state: no estimate")
	test.That(t, l.TickCount(), test.ShouldEqual, uint32(2))
}

func TestLoopStartStop(t *testing.T) {
	mockClock := clock.NewMock()
	sink := &recordingSink{}
	logger := logging.NewTestLogger(t)
	l, err := NewLoop(LoopConfig{
		Controller: newTestGeometric(t),
		State:      staticState{state: levelState(r3.Vector{Z: 1})},
		Setpoint:   hoverSetpoint(1),
		Sink:       sink,
		Clock:      mockClock,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, l.Start(), test.ShouldBeNil)
	test.That(t, l.Start(), test.ShouldBeError, "loop already running")

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mockClock.Add(time.Millisecond)
		test.That(tb, l.TickCount(), test.ShouldBeGreaterThanOrEqualTo, uint32(4))
	})
	l.Stop()
	stopped := l.TickCount()
	mockClock.Add(10 * time.Millisecond)
	test.That(t, l.TickCount(), test.ShouldEqual, stopped)
	test.That(t, sink.count(), test.ShouldBeGreaterThan, 0)

	l.Stop()
}
