package field

import "time"

const (
	// Epsilon is the liveness floor: a pattern whose amplitude falls to
	// Epsilon or below is pruned on the next tick.
	Epsilon = 0.01

	// HarmonicCount is the fixed width of the harmonics vector.
	HarmonicCount = 8

	// GridSize is the fixed edge length of a pattern's spatial grid.
	GridSize = 16

	// MaxFieldStrength caps the field strength scalar.
	MaxFieldStrength = 10.0
)

// CoordinateSystem selects the interpretation of spatial bounds.
type CoordinateSystem string

const (
	CoordCartesian        CoordinateSystem = "cartesian"
	CoordSpherical        CoordinateSystem = "spherical"
	CoordHyperdimensional CoordinateSystem = "hyperdimensional"
)

// SpatialBounds describes the region a field occupies.
type SpatialBounds struct {
	Center           [3]float64       `json:"center"`
	Extent           [3]float64       `json:"extent"`
	Resolution       float64          `json:"resolution"`
	CoordinateSystem CoordinateSystem `json:"coordinate_system"`
}

// TemporalEvolution holds the evolution law parameters for one pattern.
type TemporalEvolution struct {
	StartTime         time.Time     `json:"start_time"`
	Duration          time.Duration `json:"duration"`
	GrowthRate        float64       `json:"growth_rate"`
	DecayConstant     float64       `json:"decay_constant"`
	OscillationPeriod time.Duration `json:"oscillation_period"`
	PhaseShifts       []float64     `json:"phase_shifts,omitempty"`
}

// CognitiveSignature carries the semantic annotations of one pattern.
type CognitiveSignature struct {
	ReasoningDepth       float64  `json:"reasoning_depth"`
	ConceptualComplexity float64  `json:"conceptual_complexity"`
	AbstractionLevel     float64  `json:"abstraction_level"`
	SemanticDensity      float64  `json:"semantic_density"`
	EmergentProperties   []string `json:"emergent_properties,omitempty"`
}

// Pattern is one decaying/oscillating entity inside a field state.
// Patterns are created by interactions or synthesized from correlated
// pairs, mutated only by Evolve, and pruned once Live returns false.
type Pattern struct {
	ID                  string             `json:"id"`
	Frequency           float64            `json:"frequency"`
	Amplitude           float64            `json:"amplitude"`
	Phase               float64            `json:"phase"`
	SpatialDistribution []float64          `json:"spatial_distribution,omitempty"`
	Temporal            TemporalEvolution  `json:"temporal"`
	Cognitive           CognitiveSignature `json:"cognitive"`
	EmergenceLevel      float64            `json:"emergence_level"`
}

// CriticalityIndicator is one derived metric inside emergent dynamics.
type CriticalityIndicator struct {
	Metric       string  `json:"metric"`
	Value        float64 `json:"value"`
	Threshold    float64 `json:"threshold"`
	Trend        string  `json:"trend"`
	Significance float64 `json:"significance"`
}

// EmergentDynamics aggregates emergence metrics over a field state.
type EmergentDynamics struct {
	ComplexityIndex        float64                `json:"complexity_index"`
	SelfOrganization       float64                `json:"self_organization"`
	AdaptiveBehavior       float64                `json:"adaptive_behavior"`
	InformationIntegration float64                `json:"information_integration"`
	CriticalityIndicators  []CriticalityIndicator `json:"criticality_indicators,omitempty"`
}

// State is the full simulated state owned by one session's actor.
// The owning actor is the single writer; everything here is plain data.
type State struct {
	SessionID         string           `json:"session_id"`
	FieldStrength     float64          `json:"field_strength"`
	Patterns          []Pattern        `json:"patterns"`
	Harmonics         []float64        `json:"harmonics"`
	SpatialBounds     SpatialBounds    `json:"spatial_bounds"`
	TemporalCoherence float64          `json:"temporal_coherence"`
	LastUpdate        time.Time        `json:"last_update"`
	ActiveConnections []string         `json:"active_connections,omitempty"`
	Emergent          EmergentDynamics `json:"emergent_dynamics"`
}

// DefaultHarmonics returns the spectral reference vector a fresh field
// starts with.
func DefaultHarmonics() []float64 {
	return []float64{174, 285, 396, 417, 528, 639, 741, 852}
}

// NewState constructs an initial field state for a session: zero
// strength, no patterns, default harmonics, full temporal coherence,
// no connections, zeroed emergent dynamics.
func NewState(sessionID string) *State {
	return &State{
		SessionID:     sessionID,
		FieldStrength: 0,
		Patterns:      make([]Pattern, 0),
		Harmonics:     DefaultHarmonics(),
		SpatialBounds: SpatialBounds{
			Center:           [3]float64{0, 0, 0},
			Extent:           [3]float64{1, 1, 1},
			Resolution:       0.1,
			CoordinateSystem: CoordCartesian,
		},
		TemporalCoherence: 1,
		LastUpdate:        time.Now(),
		ActiveConnections: make([]string, 0),
		Emergent:          EmergentDynamics{},
	}
}
