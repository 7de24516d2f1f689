package control

import (
	"github.com/golang/geo/r3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// flipDerivativeLimit bounds the rate error derivative while flipping, where measured rates
// spike.
const flipDerivativeLimit = 200

// DerivativeFilter differentiates the roll and pitch rate tracking error across consecutive
// ticks. The first update after construction or Reset only records history.
type DerivativeFilter struct {
	dt          float64
	initialized bool

	prevDesiredRoll, prevDesiredPitch   float64
	prevMeasuredRoll, prevMeasuredPitch float64
}

// NewDerivativeFilter returns a filter for updates spaced `dt` seconds apart.
func NewDerivativeFilter(dt float64) *DerivativeFilter {
	return &DerivativeFilter{dt: dt}
}

// Update returns d(wd − w)/dt for roll and pitch. `desired` and `measured` are body rates in the
// same frame. In ModeFlip the result is clamped to ±200.
func (f *DerivativeFilter) Update(mode Mode, desired, measured r3.Vector) (roll, pitch float64) {
	if f.initialized {
		roll = ((desired.X - f.prevDesiredRoll) - (measured.X - f.prevMeasuredRoll)) / f.dt
		pitch = ((desired.Y - f.prevDesiredPitch) - (measured.Y - f.prevMeasuredPitch)) / f.dt
		if mode == ModeFlip {
			roll = utils.Clamp(roll, -flipDerivativeLimit, flipDerivativeLimit)
			pitch = utils.Clamp(pitch, -flipDerivativeLimit, flipDerivativeLimit)
		}
	}

	f.prevDesiredRoll, f.prevDesiredPitch = desired.X, desired.Y
	f.prevMeasuredRoll, f.prevMeasuredPitch = measured.X, measured.Y
	f.initialized = true
	return roll, pitch
}

// Reset forgets the history so that the next Update only records it.
func (f *DerivativeFilter) Reset() {
	*f = DerivativeFilter{dt: f.dt}
}

// Initialized reports whether the filter holds history from a previous update.
func (f *DerivativeFilter) Initialized() bool {
	return f.initialized
}
