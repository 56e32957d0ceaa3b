package dispatch

import (
	"encoding/json"
	"time"
)

// Processing paths. Field interactions delegate into the session's
// actor; inference and pipeline run against their collaborator
// boundaries.
const (
	TypeInference = "inference"
	TypePipeline  = "pipeline"
	TypeField     = "field_interaction"
)

// Request priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Terminal statuses. Queued requests re-enter as fresh dispatch
// attempts via the queue consumer.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusQueued    = "queued"
)

// Error codes for ErrorRecord.
const (
	CodeValidation  = "VALIDATION"
	CodeUnknownType = "UNKNOWN_TYPE"
	CodeDownstream  = "DOWNSTREAM"
	CodePersistence = "PERSISTENCE"
	CodeTimeout     = "TIMEOUT"
)

// SpatialContext locates a request.
type SpatialContext struct {
	Region      string     `json:"region,omitempty"`
	Coordinates [3]float64 `json:"coordinates,omitempty"`
}

// TemporalContext times a request.
type TemporalContext struct {
	IssuedAt time.Time `json:"issued_at,omitempty"`
	WindowMS int64     `json:"window_ms,omitempty"`
}

// RequestContext carries session/user/spatial/temporal sub-structs.
type RequestContext struct {
	Session  string           `json:"session,omitempty"`
	User     string           `json:"user,omitempty"`
	Spatial  *SpatialContext  `json:"spatial,omitempty"`
	Temporal *TemporalContext `json:"temporal,omitempty"`
}

// Requirements hints resource needs. Admission control keys off
// type and priority; requirements travel with the request for the
// processing paths.
type Requirements struct {
	MinMemoryMB    int64 `json:"min_memory_mb,omitempty"`
	MaxExecutionMS int64 `json:"max_execution_ms,omitempty"`
}

// Request is one distributed processing request, consumed exactly once.
type Request struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Priority     string          `json:"priority,omitempty"`
	Context      RequestContext  `json:"context,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Requirements Requirements    `json:"requirements,omitempty"`
	Deadline     *time.Time      `json:"deadline,omitempty"`
	Retries      int             `json:"retries,omitempty"`
}

// ErrorRecord is the typed failure captured for analytics and status.
type ErrorRecord struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics reports how a dispatch was handled.
type Metrics struct {
	DurationMS float64 `json:"duration_ms"`
	Weight     float64 `json:"weight"`
	Load       float64 `json:"load"`
	Queue      string  `json:"queue,omitempty"`
}

// Response is the outcome of one dispatch attempt.
type Response struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Result  any          `json:"result,omitempty"`
	Error   *ErrorRecord `json:"error,omitempty"`
	Metrics Metrics      `json:"metrics"`
}

// BaseWeight returns the admission weight for a path before the
// priority multiplier.
func BaseWeight(reqType string) float64 {
	switch reqType {
	case TypeInference:
		return 10
	case TypePipeline:
		return 5
	case TypeField:
		return 3
	default:
		return 5
	}
}

// PriorityMultiplier scales the base weight.
func PriorityMultiplier(priority string) float64 {
	switch priority {
	case PriorityCritical:
		return 2.0
	case PriorityHigh:
		return 1.5
	default:
		return 1.0
	}
}

// RequestWeight is the admission cost of one request.
func RequestWeight(req Request) float64 {
	return BaseWeight(req.Type) * PriorityMultiplier(req.Priority)
}

// QueueFor names the backlog queue for a request type.
func QueueFor(reqType string) string {
	switch reqType {
	case TypeInference:
		return "queue.inference"
	case TypePipeline:
		return "queue.pipeline"
	default:
		return "queue.field"
	}
}

// QueueNames lists every backlog queue the consumer drains.
func QueueNames() []string {
	return []string{"queue.inference", "queue.pipeline", "queue.field"}
}
