package actor

import (
	"context"
	"fmt"
	"time"
)

// Interaction kinds accepted over the session POST surface.
const (
	InteractCreate           = "create"
	InteractSynchronize      = "synchronize"
	InteractMeasure          = "measure"
	InteractDetectPatterns   = "detectPatterns"
	InteractAnalyzeEmergence = "analyzeEmergence"
)

// Interaction is the POST envelope for one actor operation.
type Interaction struct {
	Type          string             `json:"type"`
	SourceContext map[string]any     `json:"source_context,omitempty"`
	Parameters    map[string]float64 `json:"parameters,omitempty"`
	Timestamp     time.Time          `json:"timestamp,omitempty"`
}

// PartialState is the trimmed field view attached to every response.
type PartialState struct {
	SessionID         string    `json:"session_id"`
	FieldStrength     float64   `json:"field_strength"`
	PatternCount      int       `json:"pattern_count"`
	TemporalCoherence float64   `json:"temporal_coherence"`
	LastUpdate        time.Time `json:"last_update"`
}

// InteractionResponse is returned for every session POST.
type InteractionResponse struct {
	Success              bool         `json:"success"`
	Result               any          `json:"result,omitempty"`
	FieldState           PartialState `json:"field_state"`
	ResonanceEffects     []string     `json:"resonance_effects,omitempty"`
	EmergentObservations []string     `json:"emergent_observations,omitempty"`
	ProcessingTimeMs     float64      `json:"processing_time_ms"`
}

// Interact routes one interaction envelope to the matching operation.
// Unknown types return ErrUnknownInteraction; parameter problems
// return ErrValidation.
func (a *Actor) Interact(ctx context.Context, in Interaction) (InteractionResponse, error) {
	start := time.Now()
	var (
		result       any
		effects      []string
		observations []string
		err          error
	)

	switch in.Type {
	case InteractCreate:
		level := param(in.Parameters, "level", 1.0)
		var out CreateResult
		out, err = a.Create(ctx, level)
		if err == nil {
			result = out
			effects = append(effects,
				fmt.Sprintf("pattern %s resonating at %.1f Hz", out.PatternID, out.Frequency))
		}

	case InteractSynchronize:
		target := param(in.Parameters, "target_frequency", BaseFrequency)
		strength := param(in.Parameters, "strength", 1.0)
		var out SynchronizeResult
		out, err = a.Synchronize(ctx, target, strength)
		if err == nil {
			result = out
			effects = append(effects,
				fmt.Sprintf("%d patterns phase-locked to %.1f Hz", out.MatchedPatterns, out.TargetFrequency))
		}

	case InteractMeasure:
		out := a.Measure()
		result = out
		observations = append(observations,
			fmt.Sprintf("field is %s (complexity %.2f)", out.Criticality, out.Emergent.ComplexityIndex))

	case InteractDetectPatterns:
		threshold := param(in.Parameters, "threshold", 0.5)
		window := time.Duration(param(in.Parameters, "window_seconds", 60) * float64(time.Second))
		var out DetectResult
		out, err = a.DetectPatterns(ctx, threshold, window)
		if err == nil {
			result = out
			if out.SynthesizedPatterns > 0 {
				observations = append(observations,
					fmt.Sprintf("%d emergent patterns synthesized from %d candidates",
						out.SynthesizedPatterns, out.CandidatePatterns))
			}
		}

	case InteractAnalyzeEmergence:
		var out any
		out, err = a.AnalyzeEmergence(ctx)
		if err == nil {
			result = out
		}

	default:
		err = fmt.Errorf("%w: %q", ErrUnknownInteraction, in.Type)
	}

	if err != nil {
		return InteractionResponse{}, err
	}

	snapshot := a.Snapshot()
	return InteractionResponse{
		Success: true,
		Result:  result,
		FieldState: PartialState{
			SessionID:         snapshot.SessionID,
			FieldStrength:     snapshot.FieldStrength,
			PatternCount:      len(snapshot.Patterns),
			TemporalCoherence: snapshot.TemporalCoherence,
			LastUpdate:        snapshot.LastUpdate,
		},
		ResonanceEffects:     effects,
		EmergentObservations: observations,
		ProcessingTimeMs:     float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

func param(params map[string]float64, key string, fallback float64) float64 {
	if params == nil {
		return fallback
	}
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}
