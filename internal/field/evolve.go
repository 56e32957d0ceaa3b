package field

import (
	"math"
	"time"
)

// Live reports whether a pattern is still live at the given instant.
// A pattern is live iff its amplitude is above Epsilon and its age is
// still inside its configured duration.
func Live(p Pattern, now time.Time) bool {
	if p.Amplitude <= Epsilon {
		return false
	}
	return now.Sub(p.Temporal.StartTime) < p.Temporal.Duration
}

// Evolve returns the pattern advanced to the given instant.
//
// Amplitude is scaled by the combined growth/decay envelope plus a 10%
// oscillation ripple; phase drifts linearly with elapsed time and wraps
// at 2π. The input pattern is not modified.
func Evolve(p Pattern, now time.Time) Pattern {
	elapsed := now.Sub(p.Temporal.StartTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	duration := p.Temporal.Duration.Seconds()
	if duration <= 0 {
		p.Amplitude = 0
		return p
	}
	t := elapsed / duration

	envelope := math.Exp(p.Temporal.GrowthRate*t) * math.Exp(-p.Temporal.DecayConstant*t)
	ripple := 1.0
	if osc := p.Temporal.OscillationPeriod.Seconds(); osc > 0 {
		ripple = 1 + 0.1*math.Sin(2*math.Pi*elapsed/osc)
	}
	p.Amplitude *= envelope * ripple
	p.Phase = wrapPhase(p.Phase + 0.01*elapsed)
	return p
}

func wrapPhase(phase float64) float64 {
	phase = math.Mod(phase, 2*math.Pi)
	if phase < 0 {
		phase += 2 * math.Pi
	}
	return phase
}
