package control

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestDerivativeFilterFirstUpdate(t *testing.T) {
	f := NewDerivativeFilter(0.002)
	test.That(t, f.Initialized(), test.ShouldBeFalse)

	roll, pitch := f.Update(ModePositionHold, r3.Vector{X: 1, Y: 2}, r3.Vector{X: -3, Y: 4})
	test.That(t, roll, test.ShouldEqual, 0.0)
	test.That(t, pitch, test.ShouldEqual, 0.0)
	test.That(t, f.Initialized(), test.ShouldBeTrue)

	roll, pitch = f.Update(ModePositionHold, r3.Vector{X: 1.1, Y: 2}, r3.Vector{X: -3, Y: 4.02})
	test.That(t, roll, test.ShouldAlmostEqual, 50)
	test.That(t, pitch, test.ShouldAlmostEqual, -10)

	f.Reset()
	test.That(t, f.Initialized(), test.ShouldBeFalse)
	roll, pitch = f.Update(ModePositionHold, r3.Vector{X: 100}, r3.Vector{Y: 100})
	test.That(t, roll, test.ShouldEqual, 0.0)
	test.That(t, pitch, test.ShouldEqual, 0.0)
}

func TestDerivativeFilterFlipClamp(t *testing.T) {
	f := NewDerivativeFilter(0.002)
	f.Update(ModeFlip, r3.Vector{}, r3.Vector{})

	roll, pitch := f.Update(ModeFlip, r3.Vector{X: 1}, r3.Vector{Y: 1})
	test.That(t, roll, test.ShouldEqual, 200.0)
	test.That(t, pitch, test.ShouldEqual, -200.0)

	// History still advances so the next small step is not clamped.
	roll, pitch = f.Update(ModeFlip, r3.Vector{X: 1.0001}, r3.Vector{Y: 1})
	test.That(t, roll, test.ShouldAlmostEqual, 0.05)
	test.That(t, pitch, test.ShouldEqual, 0.0)

	// Position hold does not clamp.
	roll, _ = f.Update(ModePositionHold, r3.Vector{X: 2.0001}, r3.Vector{Y: 1})
	test.That(t, roll, test.ShouldAlmostEqual, 500)
}
