package field

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Correlate scores the similarity of two patterns in [-1/3, 1].
//
// The score is the mean of three symmetric terms: frequency proximity
// in (0,1], phase alignment in [-1,1], and amplitude ratio in (0,1].
// Correlate(a, b) == Correlate(b, a) exactly.
func Correlate(a, b Pattern) float64 {
	freqCorr := 1 / (1 + math.Abs(a.Frequency-b.Frequency)/100)
	phaseCorr := math.Cos(a.Phase - b.Phase)

	lo, hi := a.Amplitude, b.Amplitude
	if lo > hi {
		lo, hi = hi, lo
	}
	ampCorr := 1.0
	if hi > 0 {
		ampCorr = lo / hi
	}

	return (freqCorr + phaseCorr + ampCorr) / 3
}

// Synthesize derives a new pattern from two correlated parents.
//
// Frequency and phase are averaged, amplitude is the geometric mean of
// the parents scaled by the correlation, and the temporal law takes the
// longer duration with the gentler decay so the child outlives neither
// parent's envelope prematurely.
func Synthesize(a, b Pattern, corr float64, now time.Time) Pattern {
	duration := a.Temporal.Duration
	if b.Temporal.Duration > duration {
		duration = b.Temporal.Duration
	}
	decay := math.Min(a.Temporal.DecayConstant, b.Temporal.DecayConstant)
	growth := (a.Temporal.GrowthRate + b.Temporal.GrowthRate) / 2
	oscillation := geometricMeanDuration(a.Temporal.OscillationPeriod, b.Temporal.OscillationPeriod)

	emergence := math.Max(a.EmergenceLevel, b.EmergenceLevel) * corr

	return Pattern{
		ID:                  uuid.NewString(),
		Frequency:           (a.Frequency + b.Frequency) / 2,
		Amplitude:           math.Sqrt(a.Amplitude*b.Amplitude) * corr,
		Phase:               wrapPhase((a.Phase + b.Phase) / 2),
		SpatialDistribution: blendGrids(a.SpatialDistribution, b.SpatialDistribution),
		Temporal: TemporalEvolution{
			StartTime:         now,
			Duration:          duration,
			GrowthRate:        growth,
			DecayConstant:     decay,
			OscillationPeriod: oscillation,
		},
		Cognitive: CognitiveSignature{
			ReasoningDepth:       math.Max(a.Cognitive.ReasoningDepth, b.Cognitive.ReasoningDepth),
			ConceptualComplexity: math.Max(a.Cognitive.ConceptualComplexity, b.Cognitive.ConceptualComplexity),
			AbstractionLevel:     math.Max(a.Cognitive.AbstractionLevel, b.Cognitive.AbstractionLevel),
			SemanticDensity:      math.Max(a.Cognitive.SemanticDensity, b.Cognitive.SemanticDensity),
			EmergentProperties:   mergeTags(a.Cognitive.EmergentProperties, b.Cognitive.EmergentProperties),
		},
		EmergenceLevel: emergence,
	}
}

// Entropy returns the Shannon entropy, in bits, of the empirical
// distribution of distinct frequency values. All-equal inputs yield 0;
// n distinct equally-frequent values yield log2(n).
func Entropy(frequencies []float64) float64 {
	if len(frequencies) == 0 {
		return 0
	}
	counts := make(map[float64]int, len(frequencies))
	for _, f := range frequencies {
		counts[f]++
	}
	total := float64(len(frequencies))
	entropy := 0.0
	for _, n := range counts {
		p := float64(n) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func geometricMeanDuration(a, b time.Duration) time.Duration {
	as, bs := a.Seconds(), b.Seconds()
	if as <= 0 || bs <= 0 {
		if as > bs {
			return a
		}
		return b
	}
	return time.Duration(math.Sqrt(as*bs) * float64(time.Second))
}

func blendGrids(a, b []float64) []float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		var av, bv float64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = (av + bv) / 2
	}
	return out
}

func mergeTags(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, tag := range a {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	for _, tag := range b {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
