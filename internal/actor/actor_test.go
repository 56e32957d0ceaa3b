package actor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/swcstudio/fieldctl/internal/field"
	"github.com/swcstudio/fieldctl/internal/persist"
	"github.com/swcstudio/fieldctl/internal/testutil/testlog"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestActor(t *testing.T, state *field.State) (*Actor, *persist.Adapter, *clock) {
	t.Helper()
	adapter := persist.NewAdapter(persist.NewMemoryKV())
	clk := &clock{now: time.Now()}
	a := New(state, adapter, Config{Now: clk.Now})
	return a, adapter, clk
}

func TestCreateFirstPattern(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, adapter, _ := newTestActor(t, field.NewState("sess-create"))
	out, err := a.Create(ctx, 1.0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if out.PatternCount != 1 {
		t.Fatalf("expected exactly one pattern, got %d", out.PatternCount)
	}
	if out.Frequency != 528.0 {
		t.Fatalf("frequency: want 528.0, got %v", out.Frequency)
	}
	if math.Abs(out.Phase-math.Pi) > 1e-12 {
		t.Fatalf("phase: want pi, got %v", out.Phase)
	}
	// Additive amplification: 0 + 1^phi = 1.
	if math.Abs(out.FieldStrength-1.0) > 1e-12 {
		t.Fatalf("field strength: want 1.0, got %v", out.FieldStrength)
	}

	// Mutations persist before returning.
	loaded, ok, err := adapter.Load(ctx, "sess-create")
	if err != nil || !ok {
		t.Fatalf("load persisted state: ok=%v err=%v", ok, err)
	}
	if len(loaded.Patterns) != 1 || loaded.Patterns[0].ID != out.PatternID {
		t.Fatalf("persisted state missing the new pattern")
	}
}

func TestCreateEmergentDynamics(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, _, _ := newTestActor(t, field.NewState("sess-dyn"))
	if _, err := a.Create(ctx, 2.0); err != nil {
		t.Fatalf("create: %v", err)
	}

	snap := a.Snapshot()
	// conceptualComplexity = min(5*2, 10) = 10 -> complexity index 1.0
	if snap.Emergent.ComplexityIndex != 1.0 {
		t.Fatalf("complexity index: want 1.0, got %v", snap.Emergent.ComplexityIndex)
	}
	// amplitude 2.0 > 0.5 and emergence 2.0 > 1 -> self-organization steps by 0.1
	if math.Abs(snap.Emergent.SelfOrganization-0.1) > 1e-12 {
		t.Fatalf("self organization: want 0.1, got %v", snap.Emergent.SelfOrganization)
	}
	// semanticDensity = min(4*2, 10) = 8 -> integration 0.8
	if math.Abs(snap.Emergent.InformationIntegration-0.8) > 1e-12 {
		t.Fatalf("information integration: want 0.8, got %v", snap.Emergent.InformationIntegration)
	}
}

func TestCreateRejectsNonPositiveLevel(t *testing.T) {
	testlog.Start(t)

	a, _, _ := newTestActor(t, field.NewState("sess-bad"))
	if _, err := a.Create(context.Background(), 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynchronizeCoherenceFormula(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	state := field.NewState("sess-sync")
	a, _, _ := newTestActor(t, state)

	if _, err := a.Create(ctx, 1.0); err != nil { // 528 Hz
		t.Fatalf("create: %v", err)
	}
	coherence := 0.5
	if err := a.Override(ctx, nil, &coherence); err != nil {
		t.Fatalf("override: %v", err)
	}

	out, err := a.Synchronize(ctx, 500, 0.5) // |528-500| = 28 < 50 -> one match
	if err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	if out.MatchedPatterns != 1 {
		t.Fatalf("matched: want 1, got %d", out.MatchedPatterns)
	}
	want := math.Min(1, 0.5+1*0.5*0.1)
	if math.Abs(out.TemporalCoherence-want) > 1e-12 {
		t.Fatalf("coherence: want %v, got %v", want, out.TemporalCoherence)
	}

	// Harmonics become the first eight multiples of the target.
	for i, h := range out.Harmonics {
		if h != 500*float64(i+1) {
			t.Fatalf("harmonic %d: want %v, got %v", i, 500*float64(i+1), h)
		}
	}

	// Matched pattern rephased to 2*pi*(f-target)/target.
	snap := a.Snapshot()
	wantPhase := 2 * math.Pi * 28 / 500
	if math.Abs(snap.Patterns[0].Phase-wantPhase) > 1e-9 {
		t.Fatalf("phase: want %v, got %v", wantPhase, snap.Patterns[0].Phase)
	}
}

func TestSynchronizeCoherenceCaps(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, _, _ := newTestActor(t, field.NewState("sess-cap"))
	if _, err := a.Create(ctx, 1.0); err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := a.Synchronize(ctx, 528, 5.0)
	if err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	if out.TemporalCoherence != 1 {
		t.Fatalf("coherence must cap at 1, got %v", out.TemporalCoherence)
	}
}

func TestTickPrunesAndRecomputesStrength(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	state := field.NewState("sess-tick")
	a, _, clk := newTestActor(t, state)

	if _, err := a.Create(ctx, 1.0); err != nil { // duration 60s
		t.Fatalf("create long: %v", err)
	}
	if _, err := a.Create(ctx, 0.05); err != nil { // duration 3s
		t.Fatalf("create short: %v", err)
	}

	clk.Advance(10 * time.Second)
	if err := a.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	snap := a.Snapshot()
	now := clk.Now()
	var sum float64
	for _, p := range snap.Patterns {
		if p.Amplitude <= field.Epsilon {
			t.Fatalf("survivor below amplitude floor: %v", p.Amplitude)
		}
		if now.Sub(p.Temporal.StartTime) >= p.Temporal.Duration {
			t.Fatalf("survivor past its duration")
		}
		sum += p.Amplitude
	}
	if len(snap.Patterns) != 1 {
		t.Fatalf("short pattern should be pruned, %d remain", len(snap.Patterns))
	}
	if math.Abs(snap.FieldStrength-sum) > 1e-12 {
		t.Fatalf("field strength %v must equal amplitude sum %v", snap.FieldStrength, sum)
	}
}

func TestTickDecaysCoherence(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, _, clk := newTestActor(t, field.NewState("sess-decay"))
	clk.Advance(time.Second)
	if err := a.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := a.Snapshot().TemporalCoherence; math.Abs(got-0.999) > 1e-12 {
		t.Fatalf("coherence after one tick: want 0.999, got %v", got)
	}
}

func TestDetectPatternsSynthesizes(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	now := time.Now()
	state := field.NewState("sess-detect")
	state.Patterns = []field.Pattern{
		{
			ID: "p430", Frequency: 430, Amplitude: 0.8, Phase: 0.2,
			Temporal: field.TemporalEvolution{StartTime: now.Add(-2 * time.Second), Duration: 30 * time.Second},
		},
		{
			ID: "p440", Frequency: 440, Amplitude: 0.8, Phase: 0.3,
			Temporal: field.TemporalEvolution{StartTime: now.Add(-1 * time.Second), Duration: 30 * time.Second},
		},
	}
	adapter := persist.NewAdapter(persist.NewMemoryKV())
	a := New(state, adapter, Config{Now: func() time.Time { return now }})

	out, err := a.DetectPatterns(ctx, 0.1, 10*time.Second)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if out.CandidatePatterns != 2 {
		t.Fatalf("candidates: want 2, got %d", out.CandidatePatterns)
	}
	if out.SynthesizedPatterns < 1 {
		t.Fatalf("expected at least one synthesized pattern")
	}
	snap := a.Snapshot()
	if len(snap.Patterns) != 2+out.SynthesizedPatterns {
		t.Fatalf("synthesized patterns must be appended to the state")
	}
}

func TestDetectPatternsWindowExcludesOld(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	now := time.Now()
	state := field.NewState("sess-window")
	state.Patterns = []field.Pattern{
		{
			ID: "old", Frequency: 430, Amplitude: 0.8,
			Temporal: field.TemporalEvolution{StartTime: now.Add(-5 * time.Minute), Duration: time.Hour},
		},
		{
			ID: "new", Frequency: 440, Amplitude: 0.8,
			Temporal: field.TemporalEvolution{StartTime: now.Add(-1 * time.Second), Duration: time.Hour},
		},
	}
	a := New(state, persist.NewAdapter(persist.NewMemoryKV()), Config{Now: func() time.Time { return now }})

	out, err := a.DetectPatterns(ctx, 0.1, 10*time.Second)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if out.CandidatePatterns != 1 || out.SynthesizedPatterns != 0 {
		t.Fatalf("old pattern must fall outside the window: %+v", out)
	}
}

func TestAnalyzeEmergence(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	now := time.Now()
	state := field.NewState("sess-emerge")
	state.Patterns = []field.Pattern{
		{
			ID: "low", Frequency: 200, Amplitude: 0.3, EmergenceLevel: 1,
			Cognitive: field.CognitiveSignature{ConceptualComplexity: 4, SemanticDensity: 3},
			Temporal:  field.TemporalEvolution{StartTime: now, Duration: time.Minute},
		},
		{
			ID: "high", Frequency: 600, Amplitude: 0.9, EmergenceLevel: 3,
			Cognitive: field.CognitiveSignature{ConceptualComplexity: 9, SemanticDensity: 7},
			Temporal:  field.TemporalEvolution{StartTime: now, Duration: time.Minute},
		},
	}
	a := New(state, persist.NewAdapter(persist.NewMemoryKV()), Config{Now: func() time.Time { return now }})

	dyn, err := a.AnalyzeEmergence(ctx)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if dyn.ComplexityIndex != 0.9 {
		t.Fatalf("complexity: want 0.9, got %v", dyn.ComplexityIndex)
	}
	if dyn.SelfOrganization != 0.8 {
		t.Fatalf("one pattern above emergence 2 should set self-organization to 0.8, got %v", dyn.SelfOrganization)
	}
	if len(dyn.CriticalityIndicators) == 0 {
		t.Fatalf("expected criticality indicators")
	}
	if dyn.CriticalityIndicators[0].Metric != "phase_transitions" || dyn.CriticalityIndicators[0].Value != 1 {
		t.Fatalf("phase transitions indicator wrong: %+v", dyn.CriticalityIndicators[0])
	}
}

func TestAnalyzeEmergenceNoTransitions(t *testing.T) {
	testlog.Start(t)

	state := field.NewState("sess-quiet")
	a, _, _ := newTestActor(t, state)

	dyn, err := a.AnalyzeEmergence(context.Background())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if dyn.SelfOrganization != 0.2 {
		t.Fatalf("no transitions should set self-organization to 0.2, got %v", dyn.SelfOrganization)
	}
}

func TestMeasure(t *testing.T) {
	testlog.Start(t)

	now := time.Now()
	state := field.NewState("sess-measure")
	state.FieldStrength = 1.5
	state.Patterns = []field.Pattern{
		{ID: "a", Frequency: 400, Amplitude: 1.0, Phase: 0, Cognitive: field.CognitiveSignature{SemanticDensity: 4},
			Temporal: field.TemporalEvolution{StartTime: now, Duration: time.Minute}},
		{ID: "b", Frequency: 600, Amplitude: 0.5, Phase: 0, Cognitive: field.CognitiveSignature{SemanticDensity: 8},
			Temporal: field.TemporalEvolution{StartTime: now, Duration: time.Minute}},
	}
	a := New(state, persist.NewAdapter(persist.NewMemoryKV()), Config{Now: func() time.Time { return now }})

	m := a.Measure()
	wantDominant := (400*1.0 + 600*0.5) / 1.5
	if math.Abs(m.DominantFrequency-wantDominant) > 1e-9 {
		t.Fatalf("dominant frequency: want %v, got %v", wantDominant, m.DominantFrequency)
	}
	if m.Criticality != "subcritical" {
		t.Fatalf("zero complexity should be subcritical, got %q", m.Criticality)
	}
	if math.Abs(m.MeanSemanticDensity-6) > 1e-12 {
		t.Fatalf("mean semantic density: want 6, got %v", m.MeanSemanticDensity)
	}
	if math.Abs(m.FrequencyEntropy-1) > 1e-12 {
		t.Fatalf("two distinct frequencies: entropy 1 bit, got %v", m.FrequencyEntropy)
	}
	// In-phase patterns are fully spatially coherent.
	if math.Abs(m.SpatialCoherence-1) > 1e-12 {
		t.Fatalf("spatial coherence: want 1, got %v", m.SpatialCoherence)
	}
}

func TestMeasureEmptyField(t *testing.T) {
	testlog.Start(t)

	a, _, _ := newTestActor(t, field.NewState("sess-empty"))
	m := a.Measure()
	if m.DominantFrequency != 0 {
		t.Fatalf("empty field dominant frequency should be 0, got %v", m.DominantFrequency)
	}
	if m.PatternCount != 0 {
		t.Fatalf("empty field should report zero patterns")
	}
}

func TestOverrideClampsAndPersists(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, adapter, _ := newTestActor(t, field.NewState("sess-put"))
	strength := 99.0
	coherence := -0.5
	if err := a.Override(ctx, &strength, &coherence); err != nil {
		t.Fatalf("override: %v", err)
	}

	loaded, ok, err := adapter.Load(ctx, "sess-put")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.FieldStrength != field.MaxFieldStrength {
		t.Fatalf("field strength must clamp to %v, got %v", field.MaxFieldStrength, loaded.FieldStrength)
	}
	if loaded.TemporalCoherence != 0 {
		t.Fatalf("coherence must clamp to 0, got %v", loaded.TemporalCoherence)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, adapter, _ := newTestActor(t, field.NewState("sess-reset"))
	if _, err := a.Create(ctx, 2.0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	loaded, ok, err := adapter.Load(ctx, "sess-reset")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.FieldStrength != 0 || len(loaded.Patterns) != 0 || loaded.TemporalCoherence != 1 {
		t.Fatalf("reset state not at defaults: %+v", loaded)
	}
}

type failingStore struct{}

func (failingStore) Save(context.Context, *field.State) error { return errors.New("disk full") }
func (failingStore) Load(context.Context, string) (*field.State, bool, error) {
	return nil, false, nil
}
func (failingStore) Reset(context.Context, string) error { return errors.New("disk full") }

func TestPersistFailureFailsInteraction(t *testing.T) {
	testlog.Start(t)

	a := New(field.NewState("sess-fail"), failingStore{}, Config{})
	if _, err := a.Create(context.Background(), 1.0); err == nil {
		t.Fatalf("a failed persist must fail the interaction")
	}
}

func TestFanoutBestEffort(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	a, _, _ := newTestActor(t, field.NewState("sess-fan"))

	live := make(chan Event, 1)
	full := make(chan Event) // unbuffered and never read
	a.Subscribe("live", live)
	a.Subscribe("stuck", full)

	if _, err := a.Create(ctx, 1.0); err != nil {
		t.Fatalf("a stuck subscriber must not fail the interaction: %v", err)
	}

	select {
	case ev := <-live:
		if ev.Kind != "pattern_created" || ev.SessionID != "sess-fan" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("live subscriber should have received the event")
	}

	snap := a.Snapshot()
	if len(snap.ActiveConnections) != 2 {
		t.Fatalf("expected 2 recorded connections, got %v", snap.ActiveConnections)
	}
}

func TestInteractUnknownType(t *testing.T) {
	testlog.Start(t)

	a, _, _ := newTestActor(t, field.NewState("sess-unknown"))
	if _, err := a.Interact(context.Background(), Interaction{Type: "transcend"}); !errors.Is(err, ErrUnknownInteraction) {
		t.Fatalf("expected unknown interaction error, got %v", err)
	}
}

func TestInteractCreateEnvelope(t *testing.T) {
	testlog.Start(t)

	a, _, _ := newTestActor(t, field.NewState("sess-envelope"))
	resp, err := a.Interact(context.Background(), Interaction{
		Type:       InteractCreate,
		Parameters: map[string]float64{"level": 1.0},
	})
	if err != nil {
		t.Fatalf("interact: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success")
	}
	if resp.FieldState.PatternCount != 1 {
		t.Fatalf("field state should report one pattern")
	}
	if len(resp.ResonanceEffects) == 0 {
		t.Fatalf("create should report a resonance effect")
	}
}

func TestRegistryLoadsPersistedState(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	adapter := persist.NewAdapter(persist.NewMemoryKV())
	state := field.NewState("sess-reg")
	state.FieldStrength = 4.2
	if err := adapter.Save(ctx, state); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	registry := NewRegistry(adapter, Config{TickInterval: time.Hour})
	defer registry.Close()

	a, err := registry.Get(ctx, "sess-reg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := a.Snapshot().FieldStrength; got != 4.2 {
		t.Fatalf("restored strength: want 4.2, got %v", got)
	}

	again, err := registry.Get(ctx, "sess-reg")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again != a {
		t.Fatalf("registry must return the same actor per session")
	}
}

func TestRegistryEvictStopsTicks(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	registry := NewRegistry(persist.NewAdapter(persist.NewMemoryKV()), Config{TickInterval: time.Hour})
	defer registry.Close()

	if _, err := registry.Get(ctx, "sess-evict"); err != nil {
		t.Fatalf("get: %v", err)
	}
	registry.Evict("sess-evict")
	if len(registry.Sessions()) != 0 {
		t.Fatalf("evicted session still registered")
	}
}
