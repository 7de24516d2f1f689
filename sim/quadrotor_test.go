package sim

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/power"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/spatialmath"
)

func newTestQuadrotor(t *testing.T, position r3.Vector) *Quadrotor {
	t.Helper()
	q, err := NewQuadrotor(DefaultConfig(), position)
	test.That(t, err, test.ShouldBeNil)
	return q
}

// hoverRatio is the ratio at which four motors carry the default vehicle.
func hoverRatio() uint16 {
	cfg := DefaultConfig()
	return uint16(math.Round(cfg.Power.RatioForThrust(cfg.Mass * control.Gravity / 4)))
}

func run(q *Quadrotor, steps int) {
	for i := 0; i < steps; i++ {
		q.Step()
	}
}

func TestNewQuadrotor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inertia.Z = 0
	_, err := NewQuadrotor(cfg, r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "inertia must be positive")

	cfg = DefaultConfig()
	cfg.Power.ThrustToTorque = 0
	_, err = NewQuadrotor(cfg, r3.Vector{})
	test.That(t, err, test.ShouldBeError, "thrust to torque must be positive, got 0")
}

func TestFreeFallAndGround(t *testing.T) {
	q := newTestQuadrotor(t, r3.Vector{Z: 1})
	run(q, 100)
	test.That(t, q.Time(), test.ShouldAlmostEqual, 0.1, 1e-9)
	b := q.Body()
	test.That(t, b.Velocity.Z, test.ShouldAlmostEqual, -control.Gravity*0.1, 1e-9)
	test.That(t, b.Position.Z, test.ShouldAlmostEqual, 1-0.5*control.Gravity*0.01, 0.01)

	run(q, 1000)
	b = q.Body()
	test.That(t, b.Position.Z, test.ShouldEqual, 0.0)
	test.That(t, b.Velocity, test.ShouldResemble, r3.Vector{})
}

func TestOpenLoopHover(t *testing.T) {
	ctx := context.Background()
	q := newTestQuadrotor(t, r3.Vector{Z: 1})
	h := hoverRatio()
	test.That(t, q.SetRatios(ctx, power.Ratios{h, h, h, h}), test.ShouldBeNil)
	// Let the motors spin up, then hold.
	run(q, 200)
	v := q.Body().Velocity.Z
	run(q, 500)
	b := q.Body()
	test.That(t, b.Velocity.Z, test.ShouldAlmostEqual, v, 1e-3)
	test.That(t, b.Rate, test.ShouldResemble, r3.Vector{})

	stats := q.Stats().(Stats)
	test.That(t, stats.Thrust, test.ShouldAlmostEqual, DefaultConfig().Mass*control.Gravity, 1e-4)
}

func TestTorqueDirections(t *testing.T) {
	ctx := context.Background()
	h := hoverRatio()
	for _, tc := range []struct {
		name   string
		ratios power.Ratios
		check  func(rate r3.Vector) bool
	}{
		{"left motors roll positive", power.Ratios{h, h, h + 1000, h + 1000}, func(w r3.Vector) bool { return w.X > 0 }},
		{"rear motors pitch positive", power.Ratios{h, h + 1000, h + 1000, h}, func(w r3.Vector) bool { return w.Y > 0 }},
		{"motors two and four yaw positive", power.Ratios{h, h + 1000, h, h + 1000}, func(w r3.Vector) bool { return w.Z > 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := newTestQuadrotor(t, r3.Vector{Z: 1})
			test.That(t, q.SetRatios(ctx, tc.ratios), test.ShouldBeNil)
			run(q, 20)
			test.That(t, tc.check(q.Body().Rate), test.ShouldBeTrue)

			_, sensors, err := q.State(ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, spatialmath.R3VectorAlmostEqual(sensors.Gyro, q.Body().Rate.Mul(180/math.Pi), 1e-9), test.ShouldBeTrue)
		})
	}
}

// closedLoop flies the geometric controller against the simulator.
type closedLoop struct {
	q    *Quadrotor
	loop *control.Loop
}

func newClosedLoop(t *testing.T, q *Quadrotor, sp control.Setpoint) *closedLoop {
	t.Helper()
	logger := logging.NewTestLogger(t)
	g, err := control.NewGeometric(control.DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	dist, err := power.NewDistributor(power.DefaultConfig(), q, logger)
	test.That(t, err, test.ShouldBeNil)
	loop, err := control.NewLoop(control.LoopConfig{
		Controller: g,
		State:      q,
		Setpoint: control.SetpointFunc(func(context.Context) (control.Setpoint, error) {
			return sp, nil
		}),
		Sink: dist,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	return &closedLoop{q: q, loop: loop}
}

func (c *closedLoop) fly(t *testing.T, seconds float64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < int(seconds*1000); i++ {
		test.That(t, c.loop.Tick(ctx), test.ShouldBeNil)
		c.q.Step()
	}
}

func TestClosedLoopHover(t *testing.T) {
	q := newTestQuadrotor(t, r3.Vector{Z: 0.9})
	c := newClosedLoop(t, q, control.HoverSetpoint(r3.Vector{Z: 1}))
	c.fly(t, 4)

	b := q.Body()
	test.That(t, b.Position.Z, test.ShouldAlmostEqual, 1, 0.05)
	test.That(t, b.Velocity.Norm(), test.ShouldBeLessThan, 0.02)
	test.That(t, b.Position.X, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, b.Position.Y, test.ShouldAlmostEqual, 0, 1e-6)
}

func TestClosedLoopLevels(t *testing.T) {
	for _, tc := range []struct {
		name string
		axis r3.Vector
	}{
		{"roll", r3.Vector{X: 1}},
		{"pitch", r3.Vector{Y: 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := newTestQuadrotor(t, r3.Vector{Z: 1})
			b := q.Body()
			b.Attitude = spatialmath.QuatFromAxisAngle(tc.axis, 5*math.Pi/180)
			q.SetBody(b)

			tilt := func() float64 {
				z := spatialmath.Column(spatialmath.QuatToRotationMatrix(q.Body().Attitude), 2)
				return math.Acos(z.Z) * 180 / math.Pi
			}
			test.That(t, tilt(), test.ShouldAlmostEqual, 5, 1e-6)

			c := newClosedLoop(t, q, control.HoverSetpoint(r3.Vector{Z: 1}))
			c.fly(t, 0.15)
			test.That(t, tilt(), test.ShouldBeLessThan, 4.5)

			// The position loop swings the vehicle back through level before it settles.
			c.fly(t, 7.85)
			test.That(t, tilt(), test.ShouldBeLessThan, 1)
			pos := q.Body().Position
			test.That(t, math.Hypot(pos.X, pos.Y), test.ShouldBeLessThan, 0.05)
			test.That(t, pos.Z, test.ShouldAlmostEqual, 1, 0.05)
		})
	}
}
