package utils

// MainLoopRate is the frequency, in Hz, at which the periodic loop ticks.
const MainLoopRate = 1000

// Frequencies, in Hz, that stabilizer stages may be gated to.
const (
	Rate1000Hz = 1000
	Rate500Hz  = 500
	Rate250Hz  = 250
	Rate100Hz  = 100
)

// RateDoExecute reports whether a stage running at `rateHz` should execute on main loop tick
// `tick`. Rates that do not divide the main loop rate evenly run at the nearest faster divisor.
func RateDoExecute(rateHz int, tick uint32) bool {
	if rateHz <= 0 {
		return false
	}
	divisor := uint32(MainLoopRate / rateHz)
	if divisor == 0 {
		return true
	}
	return tick%divisor == 0
}

// RatePeriod returns the period, in seconds, of a stage running at `rateHz`.
func RatePeriod(rateHz int) float64 {
	return 1 / float64(rateHz)
}
