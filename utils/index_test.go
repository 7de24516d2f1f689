package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestIdxSubRoundTrip(t *testing.T) {
	dims := []int{5, 9, 5, 9}
	strides := make([]int, len(dims))
	total := Strides(strides, dims)
	test.That(t, total, test.ShouldEqual, 2025)
	test.That(t, strides, test.ShouldResemble, []int{405, 45, 9, 1})

	sub := make([]int, len(dims))
	for _, idx := range []int{0, 1, 9, 44, 45, 404, 405, 1012, 2024} {
		SubFor(sub, idx, dims)
		test.That(t, IdxFor(sub, dims), test.ShouldEqual, idx)
	}

	test.That(t, SubFor(nil, 2024, dims), test.ShouldResemble, []int{4, 8, 4, 8})
	test.That(t, func() { SubFor(sub, 2025, dims) }, test.ShouldPanic)
	test.That(t, func() { IdxFor([]int{5, 0, 0, 0}, dims) }, test.ShouldPanic)
}

func TestRateDoExecute(t *testing.T) {
	var executed int
	for tick := uint32(0); tick < 1000; tick++ {
		if RateDoExecute(Rate500Hz, tick) {
			executed++
		}
	}
	test.That(t, executed, test.ShouldEqual, 500)
	test.That(t, RateDoExecute(Rate500Hz, 0), test.ShouldBeTrue)
	test.That(t, RateDoExecute(Rate500Hz, 1), test.ShouldBeFalse)
	test.That(t, RateDoExecute(Rate100Hz, 30), test.ShouldBeTrue)
	test.That(t, RateDoExecute(Rate100Hz, 35), test.ShouldBeFalse)
	test.That(t, RateDoExecute(0, 0), test.ShouldBeFalse)
	test.That(t, RatePeriod(Rate500Hz), test.ShouldAlmostEqual, 0.002)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(40000.0, -32000, 32000), test.ShouldEqual, 32000.0)
	test.That(t, Clamp(-40000.0, -32000, 32000), test.ShouldEqual, -32000.0)
	test.That(t, Clamp(3, 0, 5), test.ShouldEqual, 3)
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, 3.141592653589793)
	test.That(t, RadToDeg(DegToRad(37)), test.ShouldAlmostEqual, 37)
}
