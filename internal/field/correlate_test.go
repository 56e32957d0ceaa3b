package field

import (
	"math"
	"testing"
	"time"

	"github.com/swcstudio/fieldctl/internal/testutil/testlog"
)

func TestCorrelateSymmetric(t *testing.T) {
	testlog.Start(t)

	start := time.Now()
	cases := []struct{ a, b Pattern }{
		{
			a: Pattern{Frequency: 430, Amplitude: 0.8, Phase: 0.5, Temporal: TemporalEvolution{StartTime: start}},
			b: Pattern{Frequency: 440, Amplitude: 0.6, Phase: 1.2, Temporal: TemporalEvolution{StartTime: start}},
		},
		{
			a: Pattern{Frequency: 100, Amplitude: 0.1, Phase: 3.0},
			b: Pattern{Frequency: 900, Amplitude: 1.0, Phase: 0.1},
		},
		{
			a: Pattern{Frequency: 528, Amplitude: 0.5, Phase: math.Pi},
			b: Pattern{Frequency: 528, Amplitude: 0.5, Phase: math.Pi},
		},
	}

	for i, tc := range cases {
		ab := Correlate(tc.a, tc.b)
		ba := Correlate(tc.b, tc.a)
		if ab != ba {
			t.Fatalf("case %d: correlate not symmetric: %v != %v", i, ab, ba)
		}
	}
}

func TestCorrelateIdenticalPatterns(t *testing.T) {
	testlog.Start(t)

	p := Pattern{Frequency: 528, Amplitude: 0.7, Phase: 1.0}
	corr := Correlate(p, p)
	if math.Abs(corr-1.0) > 1e-12 {
		t.Fatalf("identical patterns should correlate at 1, got %v", corr)
	}
}

func TestCorrelateNearbyFrequencies(t *testing.T) {
	testlog.Start(t)

	a := Pattern{Frequency: 430, Amplitude: 0.5, Phase: 0}
	b := Pattern{Frequency: 440, Amplitude: 0.5, Phase: 0}
	corr := Correlate(a, b)
	if corr <= 0.1 {
		t.Fatalf("10Hz apart, in-phase, equal amplitude should correlate above 0.1, got %v", corr)
	}
}

func TestSynthesize(t *testing.T) {
	testlog.Start(t)

	now := time.Now()
	a := Pattern{
		ID: "a", Frequency: 430, Amplitude: 0.8, Phase: 1.0, EmergenceLevel: 2.0,
		Temporal: TemporalEvolution{StartTime: now, Duration: 30 * time.Second, DecayConstant: 0.5, GrowthRate: 0.2, OscillationPeriod: 4 * time.Second},
	}
	b := Pattern{
		ID: "b", Frequency: 440, Amplitude: 0.2, Phase: 2.0, EmergenceLevel: 1.0,
		Temporal: TemporalEvolution{StartTime: now, Duration: 60 * time.Second, DecayConstant: 0.3, GrowthRate: 0.4, OscillationPeriod: 9 * time.Second},
	}
	corr := Correlate(a, b)

	child := Synthesize(a, b, corr, now)
	if child.ID == "" || child.ID == a.ID || child.ID == b.ID {
		t.Fatalf("synthesized pattern needs a fresh id, got %q", child.ID)
	}
	if child.Frequency != 435 {
		t.Fatalf("frequency: want 435, got %v", child.Frequency)
	}
	wantAmp := math.Sqrt(0.8*0.2) * corr
	if math.Abs(child.Amplitude-wantAmp) > 1e-12 {
		t.Fatalf("amplitude: want %v, got %v", wantAmp, child.Amplitude)
	}
	if child.Temporal.Duration != 60*time.Second {
		t.Fatalf("duration: want max of parents, got %v", child.Temporal.Duration)
	}
	if child.Temporal.DecayConstant != 0.3 {
		t.Fatalf("decay: want min of parents, got %v", child.Temporal.DecayConstant)
	}
	if math.Abs(child.Temporal.GrowthRate-0.3) > 1e-12 {
		t.Fatalf("growth: want mean of parents, got %v", child.Temporal.GrowthRate)
	}
	if math.Abs(child.Temporal.OscillationPeriod.Seconds()-6) > 1e-9 {
		t.Fatalf("oscillation: want geometric mean 6s, got %v", child.Temporal.OscillationPeriod)
	}
	wantEmergence := 2.0 * corr
	if math.Abs(child.EmergenceLevel-wantEmergence) > 1e-12 {
		t.Fatalf("emergence: want %v, got %v", wantEmergence, child.EmergenceLevel)
	}
}

func TestEntropyAllEqual(t *testing.T) {
	testlog.Start(t)

	if e := Entropy([]float64{440, 440, 440}); e != 0 {
		t.Fatalf("entropy of identical frequencies should be 0, got %v", e)
	}
}

func TestEntropyUniformDistinct(t *testing.T) {
	testlog.Start(t)

	freqs := []float64{100, 200, 300, 400}
	want := math.Log2(4)
	if e := Entropy(freqs); math.Abs(e-want) > 1e-12 {
		t.Fatalf("entropy of 4 distinct values: want %v, got %v", want, e)
	}
}

func TestEntropyEmpty(t *testing.T) {
	testlog.Start(t)

	if e := Entropy(nil); e != 0 {
		t.Fatalf("entropy of empty input should be 0, got %v", e)
	}
}
