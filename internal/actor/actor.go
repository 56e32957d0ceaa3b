package actor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swcstudio/fieldctl/internal/field"
	"github.com/swcstudio/fieldctl/internal/observability"
)

var (
	ErrUnknownInteraction = errors.New("actor: unknown interaction type")
	ErrValidation         = errors.New("actor: invalid interaction parameters")
)

const (
	// PhiExponent shapes field amplification on create.
	PhiExponent = 1.618

	// BaseFrequency anchors new-pattern frequency scaling.
	BaseFrequency = 528.0

	// SyncWindow is the frequency distance inside which synchronize
	// captures a pattern.
	SyncWindow = 50.0

	// CoherenceDecay is applied once per tick.
	CoherenceDecay = 0.999

	// DefaultTickInterval paces the background evolution loop.
	DefaultTickInterval = 5 * time.Second

	basePatternDuration    = 60 * time.Second
	basePatternGrowth      = 0.1
	basePatternDecay       = 0.5
	basePatternOscillation = 8 * time.Second
)

// Persister is the durable boundary the actor saves through. Every
// mutating operation persists before returning; a failed save fails
// the operation.
type Persister interface {
	Save(ctx context.Context, s *field.State) error
	Load(ctx context.Context, sessionID string) (*field.State, bool, error)
	Reset(ctx context.Context, sessionID string) error
}

// AmplifyFunc computes the next field strength when a create
// interaction lands. Pluggable: the stock multiplicative rule is
// degenerate from a zero start, so the default is additive.
type AmplifyFunc func(current, level float64) float64

// DefaultAmplify adds level^φ to the current strength, capped at the
// field ceiling.
func DefaultAmplify(current, level float64) float64 {
	next := current + math.Pow(level, PhiExponent)
	return math.Min(next, field.MaxFieldStrength)
}

// Config tunes one actor.
type Config struct {
	TickInterval time.Duration
	Amplify      AmplifyFunc
	Now          func() time.Time
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Amplify == nil {
		c.Amplify = DefaultAmplify
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Actor owns one session's field state. All operations serialize on
// the actor's mutex, ticks included; distinct sessions never contend.
type Actor struct {
	mu     sync.Mutex
	state  *field.State
	store  Persister
	fanout *Fanout
	cfg    Config

	cancel context.CancelFunc
	done   chan struct{}
}

// New wraps an existing field state in an actor. The tick loop is not
// started; the owner calls StartTicks once the actor is registered.
func New(state *field.State, store Persister, cfg Config) *Actor {
	return &Actor{
		state:  state,
		store:  store,
		fanout: NewFanout(),
		cfg:    cfg.withDefaults(),
	}
}

// StartTicks launches the background evolution loop. The loop is owned
// by the actor: Stop (or the parent context) cancels it, so eviction
// never leaves a free-running timer behind.
func (a *Actor) StartTicks(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.Tick(ctx); err != nil {
					log.Error().
						Str("session", a.SessionID()).
						Err(err).
						Msg("field_tick_failed")
				}
			}
		}
	}()
}

// Stop cancels the tick loop and waits for it to exit.
func (a *Actor) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
}

// SessionID returns the owned session key.
func (a *Actor) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.SessionID
}

// Fanout exposes the subscriber registry for this session.
func (a *Actor) Fanout() *Fanout {
	return a.fanout
}

// Subscribe registers a push channel and records the subscriber id on
// the field state. The registration is advisory; it carries no
// consistency guarantee.
func (a *Actor) Subscribe(id string, ch chan<- Event) {
	a.fanout.Subscribe(id, ch)
	a.mu.Lock()
	a.state.ActiveConnections = a.fanout.Subscribers()
	a.mu.Unlock()
}

// Unsubscribe drops a push channel.
func (a *Actor) Unsubscribe(id string) {
	a.fanout.Unsubscribe(id)
	a.mu.Lock()
	a.state.ActiveConnections = a.fanout.Subscribers()
	a.mu.Unlock()
}

// CreateResult reports one create interaction.
type CreateResult struct {
	PatternID     string  `json:"pattern_id"`
	Frequency     float64 `json:"frequency"`
	Amplitude     float64 `json:"amplitude"`
	Phase         float64 `json:"phase"`
	FieldStrength float64 `json:"field_strength"`
	PatternCount  int     `json:"pattern_count"`
}

// Create amplifies the field and appends one new pattern whose
// frequency, amplitude, phase, and duration scale with level.
func (a *Actor) Create(ctx context.Context, level float64) (CreateResult, error) {
	if level <= 0 {
		return CreateResult{}, fmt.Errorf("%w: level must be positive", ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.cfg.Now()
	pattern := newPattern(level, now)

	a.state.FieldStrength = a.cfg.Amplify(a.state.FieldStrength, level)
	a.state.Patterns = append(a.state.Patterns, pattern)
	a.applyPatternDynamics(pattern)
	a.state.LastUpdate = now

	if err := a.store.Save(ctx, a.state); err != nil {
		return CreateResult{}, err
	}
	a.publishLocked("pattern_created")

	return CreateResult{
		PatternID:     pattern.ID,
		Frequency:     pattern.Frequency,
		Amplitude:     pattern.Amplitude,
		Phase:         pattern.Phase,
		FieldStrength: a.state.FieldStrength,
		PatternCount:  len(a.state.Patterns),
	}, nil
}

func newPattern(level float64, now time.Time) field.Pattern {
	frequency := BaseFrequency * level
	return field.Pattern{
		ID:                  uuid.NewString(),
		Frequency:           frequency,
		Amplitude:           level,
		Phase:               wrap(math.Pi * level),
		SpatialDistribution: makeGrid(frequency, level),
		Temporal: field.TemporalEvolution{
			StartTime:         now,
			Duration:          time.Duration(level * float64(basePatternDuration)),
			GrowthRate:        basePatternGrowth * level,
			DecayConstant:     basePatternDecay,
			OscillationPeriod: basePatternOscillation,
		},
		Cognitive: field.CognitiveSignature{
			ReasoningDepth:       2 + level,
			ConceptualComplexity: math.Min(5*level, 10),
			AbstractionLevel:     math.Min(3*level, 10),
			SemanticDensity:      math.Min(4*level, 10),
		},
		EmergenceLevel: level,
	}
}

func makeGrid(frequency, amplitude float64) []float64 {
	grid := make([]float64, field.GridSize*field.GridSize)
	for i := range grid {
		x := float64(i%field.GridSize) / field.GridSize
		y := float64(i/field.GridSize) / field.GridSize
		grid[i] = amplitude * math.Sin(2*math.Pi*frequency*x/1000) * math.Cos(2*math.Pi*frequency*y/1000)
	}
	return grid
}

// applyPatternDynamics folds one new pattern into the emergent
// aggregate: running-max complexity and integration, stepped
// self-organization.
func (a *Actor) applyPatternDynamics(p field.Pattern) {
	dyn := &a.state.Emergent
	dyn.ComplexityIndex = math.Max(dyn.ComplexityIndex, p.Cognitive.ConceptualComplexity/10)
	dyn.InformationIntegration = math.Max(dyn.InformationIntegration, p.Cognitive.SemanticDensity/10)
	if p.Amplitude > 0.5 && p.EmergenceLevel > 1 {
		dyn.SelfOrganization = math.Min(1, dyn.SelfOrganization+0.1)
	}
}

// SynchronizeResult reports one synchronize interaction.
type SynchronizeResult struct {
	MatchedPatterns   int       `json:"matched_patterns"`
	TargetFrequency   float64   `json:"target_frequency"`
	Harmonics         []float64 `json:"harmonics"`
	TemporalCoherence float64   `json:"temporal_coherence"`
}

// Synchronize rephases every live pattern near the target frequency,
// rescales its amplitude, rewrites the harmonics to multiples of the
// target, and lifts temporal coherence by matched count.
func (a *Actor) Synchronize(ctx context.Context, targetFrequency, strength float64) (SynchronizeResult, error) {
	if targetFrequency <= 0 {
		return SynchronizeResult{}, fmt.Errorf("%w: target frequency must be positive", ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.cfg.Now()
	matched := 0
	for i := range a.state.Patterns {
		p := &a.state.Patterns[i]
		if !field.Live(*p, now) {
			continue
		}
		if math.Abs(p.Frequency-targetFrequency) >= SyncWindow {
			continue
		}
		p.Phase = wrap(2 * math.Pi * (p.Frequency - targetFrequency) / targetFrequency)
		p.Amplitude *= strength
		matched++
	}

	harmonics := make([]float64, field.HarmonicCount)
	for i := range harmonics {
		harmonics[i] = targetFrequency * float64(i+1)
	}
	a.state.Harmonics = harmonics
	a.state.TemporalCoherence = math.Min(1, a.state.TemporalCoherence+float64(matched)*strength*0.1)
	a.state.LastUpdate = now

	if err := a.store.Save(ctx, a.state); err != nil {
		return SynchronizeResult{}, err
	}
	a.publishLocked("field_synchronized")

	return SynchronizeResult{
		MatchedPatterns:   matched,
		TargetFrequency:   targetFrequency,
		Harmonics:         harmonics,
		TemporalCoherence: a.state.TemporalCoherence,
	}, nil
}

// Measurement is the read-only summary returned by Measure.
type Measurement struct {
	FieldStrength       float64                `json:"field_strength"`
	PatternCount        int                    `json:"pattern_count"`
	DominantFrequency   float64                `json:"dominant_frequency"`
	SpatialCoherence    float64                `json:"spatial_coherence"`
	TemporalCoherence   float64                `json:"temporal_coherence"`
	Emergent            field.EmergentDynamics `json:"emergent_dynamics"`
	Criticality         string                 `json:"criticality"`
	MeanSemanticDensity float64                `json:"mean_semantic_density"`
	FrequencyEntropy    float64                `json:"frequency_entropy"`
}

// Measure summarizes the field without mutating it.
func (a *Actor) Measure() Measurement {
	a.mu.Lock()
	defer a.mu.Unlock()

	patterns := a.state.Patterns
	var ampSum, weightedFreq, densitySum float64
	frequencies := make([]float64, 0, len(patterns))
	for _, p := range patterns {
		ampSum += p.Amplitude
		weightedFreq += p.Frequency * p.Amplitude
		densitySum += p.Cognitive.SemanticDensity
		frequencies = append(frequencies, p.Frequency)
	}

	dominant := 0.0
	if ampSum > 0 {
		dominant = weightedFreq / ampSum
	}
	meanDensity := 0.0
	if len(patterns) > 0 {
		meanDensity = densitySum / float64(len(patterns))
	}

	return Measurement{
		FieldStrength:       a.state.FieldStrength,
		PatternCount:        len(patterns),
		DominantFrequency:   dominant,
		SpatialCoherence:    spatialCoherence(patterns),
		TemporalCoherence:   a.state.TemporalCoherence,
		Emergent:            a.state.Emergent,
		Criticality:         classifyCriticality(a.state.Emergent.ComplexityIndex),
		MeanSemanticDensity: meanDensity,
		FrequencyEntropy:    field.Entropy(frequencies),
	}
}

// spatialCoherence maps mean pairwise phase alignment into [0,1]:
// 1 for a fully phase-locked field, 0.5 for uncorrelated phases.
func spatialCoherence(patterns []field.Pattern) float64 {
	if len(patterns) < 2 {
		return 1
	}
	var sum float64
	var pairs int
	for i := 0; i < len(patterns); i++ {
		for j := i + 1; j < len(patterns); j++ {
			sum += math.Cos(patterns[i].Phase - patterns[j].Phase)
			pairs++
		}
	}
	return (1 + sum/float64(pairs)) / 2
}

func classifyCriticality(complexityIndex float64) string {
	switch {
	case complexityIndex < 0.3:
		return "subcritical"
	case complexityIndex > 0.8:
		return "supercritical"
	default:
		return "critical"
	}
}

// DetectResult reports one pattern-detection interaction.
type DetectResult struct {
	CandidatePatterns   int      `json:"candidate_patterns"`
	SynthesizedPatterns int      `json:"synthesized_patterns"`
	SynthesizedIDs      []string `json:"synthesized_ids,omitempty"`
}

// DetectPatterns correlates every unordered pair of patterns created
// within the window and synthesizes a child for each pair whose
// correlation clears the threshold.
func (a *Actor) DetectPatterns(ctx context.Context, threshold float64, window time.Duration) (DetectResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.cfg.Now()
	candidates := make([]field.Pattern, 0, len(a.state.Patterns))
	for _, p := range a.state.Patterns {
		if now.Sub(p.Temporal.StartTime) <= window && field.Live(p, now) {
			candidates = append(candidates, p)
		}
	}

	synthesized := make([]field.Pattern, 0)
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			corr := field.Correlate(candidates[i], candidates[j])
			if corr > threshold {
				synthesized = append(synthesized, field.Synthesize(candidates[i], candidates[j], corr, now))
			}
		}
	}

	result := DetectResult{CandidatePatterns: len(candidates), SynthesizedPatterns: len(synthesized)}
	if len(synthesized) == 0 {
		return result, nil
	}

	a.state.Patterns = append(a.state.Patterns, synthesized...)
	for _, p := range synthesized {
		result.SynthesizedIDs = append(result.SynthesizedIDs, p.ID)
	}
	a.state.LastUpdate = now

	if err := a.store.Save(ctx, a.state); err != nil {
		return DetectResult{}, err
	}
	a.publishLocked("patterns_synthesized")
	return result, nil
}

// AnalyzeEmergence recomputes the emergent aggregate from the full
// pattern set and its derived indicators.
func (a *Actor) AnalyzeEmergence(ctx context.Context) (field.EmergentDynamics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.cfg.Now()
	patterns := a.state.Patterns

	var complexity, integration float64
	phaseTransitions := 0
	adaptive := 0
	for _, p := range patterns {
		complexity = math.Max(complexity, p.Cognitive.ConceptualComplexity/10)
		integration = math.Max(integration, p.Cognitive.SemanticDensity/10)
		if p.EmergenceLevel > 2 {
			phaseTransitions++
		}
		if p.Amplitude > 0.5 {
			adaptive++
		}
	}

	selfOrganization := 0.2
	if phaseTransitions > 0 {
		selfOrganization = 0.8
	}
	adaptiveBehavior := 0.0
	if len(patterns) > 0 {
		adaptiveBehavior = float64(adaptive) / float64(len(patterns))
	}

	previous := a.state.Emergent.ComplexityIndex
	dyn := field.EmergentDynamics{
		ComplexityIndex:        complexity,
		SelfOrganization:       selfOrganization,
		AdaptiveBehavior:       adaptiveBehavior,
		InformationIntegration: integration,
		CriticalityIndicators: []field.CriticalityIndicator{
			{
				Metric:       "phase_transitions",
				Value:        float64(phaseTransitions),
				Threshold:    2,
				Trend:        trend(float64(phaseTransitions), 0),
				Significance: selfOrganization,
			},
			{
				Metric:       "complexity_index",
				Value:        complexity,
				Threshold:    0.8,
				Trend:        trend(complexity, previous),
				Significance: integration,
			},
		},
	}
	a.state.Emergent = dyn
	a.state.LastUpdate = now

	if err := a.store.Save(ctx, a.state); err != nil {
		return field.EmergentDynamics{}, err
	}
	a.publishLocked("emergence_analyzed")
	return dyn, nil
}

func trend(current, previous float64) string {
	switch {
	case current > previous:
		return "rising"
	case current < previous:
		return "falling"
	default:
		return "stable"
	}
}

// Override applies a partial direct update (PUT) and persists it.
// Values are clamped to the field invariants.
func (a *Actor) Override(ctx context.Context, fieldStrength, temporalCoherence *float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if fieldStrength != nil {
		a.state.FieldStrength = clamp(*fieldStrength, 0, field.MaxFieldStrength)
	}
	if temporalCoherence != nil {
		a.state.TemporalCoherence = clamp(*temporalCoherence, 0, 1)
	}
	a.state.LastUpdate = a.cfg.Now()

	if err := a.store.Save(ctx, a.state); err != nil {
		return err
	}
	a.publishLocked("field_overridden")
	return nil
}

// Reset returns the field to its initial defaults and persists the
// fresh state. Subscriber registrations survive the reset.
func (a *Actor) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := field.NewState(a.state.SessionID)
	fresh.ActiveConnections = a.fanout.Subscribers()
	a.state = fresh

	if err := a.store.Save(ctx, a.state); err != nil {
		return err
	}
	a.publishLocked("field_reset")
	return nil
}

// Snapshot returns a copy of the owned state for read-only use.
func (a *Actor) Snapshot() field.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyState(a.state)
}

// Tick runs one evolution pass: evolve every pattern, prune dead ones,
// recompute field strength as the amplitude sum, decay coherence, and
// persist. Serialized with interactions on the actor mutex.
func (a *Actor) Tick(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.cfg.Now()
	survivors := a.state.Patterns[:0]
	var strength float64
	for _, p := range a.state.Patterns {
		evolved := field.Evolve(p, now)
		if !field.Live(evolved, now) {
			continue
		}
		survivors = append(survivors, evolved)
		strength += evolved.Amplitude
	}
	a.state.Patterns = survivors
	a.state.FieldStrength = strength
	a.state.TemporalCoherence *= CoherenceDecay
	a.state.LastUpdate = now

	if err := a.store.Save(ctx, a.state); err != nil {
		return err
	}
	observability.RecordActorTick(a.state.SessionID, len(survivors))
	return nil
}

// publishLocked fans the current state out to subscribers. Caller
// holds the mutex. Best effort only.
func (a *Actor) publishLocked(kind string) {
	a.fanout.Publish(Event{
		SessionID:     a.state.SessionID,
		Kind:          kind,
		FieldStrength: a.state.FieldStrength,
		PatternCount:  len(a.state.Patterns),
		Coherence:     a.state.TemporalCoherence,
	})
}

func copyState(s *field.State) field.State {
	out := *s
	out.Patterns = make([]field.Pattern, len(s.Patterns))
	copy(out.Patterns, s.Patterns)
	out.Harmonics = append([]float64(nil), s.Harmonics...)
	out.ActiveConnections = append([]string(nil), s.ActiveConnections...)
	out.Emergent.CriticalityIndicators = append([]field.CriticalityIndicator(nil), s.Emergent.CriticalityIndicators...)
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func wrap(phase float64) float64 {
	phase = math.Mod(phase, 2*math.Pi)
	if phase < 0 {
		phase += 2 * math.Pi
	}
	return phase
}
