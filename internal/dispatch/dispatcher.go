package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swcstudio/fieldctl/internal/actor"
	"github.com/swcstudio/fieldctl/internal/analytics"
	"github.com/swcstudio/fieldctl/internal/blob"
	"github.com/swcstudio/fieldctl/internal/inference"
	"github.com/swcstudio/fieldctl/internal/observability"
	"github.com/swcstudio/fieldctl/internal/persist"
	"github.com/swcstudio/fieldctl/internal/queue"
)

var (
	ErrValidation  = errors.New("dispatch: invalid request")
	ErrUnknownType = errors.New("dispatch: unknown request type")
)

// Config tunes admission control and identity.
type Config struct {
	EdgeID    string
	Capacity  float64
	ResultTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.EdgeID == "" {
		c.EdgeID = "edge-local"
	}
	if c.Capacity <= 0 {
		c.Capacity = 100
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = time.Hour
	}
	return c
}

// Dispatcher classifies requests, gates them on weighted capacity,
// routes admitted work to one of three processing paths, and records
// outcome and analytics. Stateless across requests except for the
// load gauge.
type Dispatcher struct {
	cfg       Config
	registry  *actor.Registry
	inference inference.Client
	blobs     blob.Store
	analytics *analytics.Store
	backlog   queue.Queue
	results   persist.KV

	loadMu sync.Mutex
	load   float64
}

// New wires a dispatcher over its collaborators.
func New(cfg Config, registry *actor.Registry, inf inference.Client, blobs blob.Store, anl *analytics.Store, backlog queue.Queue, results persist.KV) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg.withDefaults(),
		registry:  registry,
		inference: inf,
		blobs:     blobs,
		analytics: anl,
		backlog:   backlog,
		results:   results,
	}
}

// CurrentLoad reports the weighted in-flight work.
func (d *Dispatcher) CurrentLoad() float64 {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	return d.load
}

// Capacity reports the admission ceiling.
func (d *Dispatcher) Capacity() float64 {
	return d.cfg.Capacity
}

// admit reserves weight if it fits under capacity. Non-blocking: an
// over-capacity request is refused, never stalled.
func (d *Dispatcher) admit(weight float64) bool {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	if d.load+weight > d.cfg.Capacity {
		return false
	}
	d.load += weight
	observability.SetDispatchLoad(d.cfg.EdgeID, d.load)
	return true
}

func (d *Dispatcher) release(weight float64) {
	d.loadMu.Lock()
	d.load -= weight
	observability.SetDispatchLoad(d.cfg.EdgeID, d.load)
	d.loadMu.Unlock()
}

// Process handles one request to a terminal status. It never retries;
// redelivery of queued or failed work belongs to the queue layer.
func (d *Dispatcher) Process(ctx context.Context, req Request) Response {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}

	if err := validate(req); err != nil {
		return d.fail(ctx, req, start, 0, CodeValidation, err)
	}

	if req.Deadline != nil && time.Now().After(*req.Deadline) {
		return d.terminal(ctx, req, start, 0, StatusTimeout, &ErrorRecord{
			Code:      CodeTimeout,
			Message:   "deadline expired before dispatch",
			Context:   requestContext(req),
			Timestamp: time.Now(),
		})
	}

	weight := RequestWeight(req)
	if !d.admit(weight) {
		return d.enqueue(ctx, req, start, weight)
	}
	defer d.release(weight)

	result, err := d.route(ctx, req)
	if err != nil {
		code := CodeDownstream
		switch {
		case errors.Is(err, ErrUnknownType), errors.Is(err, actor.ErrUnknownInteraction):
			code = CodeUnknownType
		case errors.Is(err, actor.ErrValidation):
			code = CodeValidation
		case errors.Is(err, persist.ErrCorruptState):
			code = CodePersistence
		}
		return d.fail(ctx, req, start, weight, code, err)
	}

	resp := Response{
		ID:     req.ID,
		Status: StatusCompleted,
		Result: result,
		Metrics: Metrics{
			DurationMS: msSince(start),
			Weight:     weight,
			Load:       d.CurrentLoad(),
		},
	}
	d.persistResult(ctx, resp)
	d.record(ctx, req, start, true, "")
	observability.RecordDispatch(d.cfg.EdgeID, req.Type, req.Priority, StatusCompleted, time.Since(start))
	return resp
}

// route runs the admitted request on its processing path.
func (d *Dispatcher) route(ctx context.Context, req Request) (any, error) {
	switch req.Type {
	case TypeInference:
		return d.runInference(ctx, req)
	case TypePipeline:
		return d.runPipeline(ctx, req)
	case TypeField:
		return d.runField(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
}

type inferencePayload struct {
	Prompt string `json:"prompt"`
}

func (d *Dispatcher) runInference(ctx context.Context, req Request) (any, error) {
	var payload inferencePayload
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: bad inference payload: %v", ErrValidation, err)
		}
	}
	if payload.Prompt == "" {
		return nil, fmt.Errorf("%w: missing prompt", ErrValidation)
	}
	text, err := d.inference.Generate(ctx, payload.Prompt)
	if err != nil {
		return nil, err
	}
	return map[string]any{"text": text}, nil
}

type pipelinePayload struct {
	Text string `json:"text"`
}

// runPipeline embeds the payload text and stores the vector as a blob
// artifact keyed by request id.
func (d *Dispatcher) runPipeline(ctx context.Context, req Request) (any, error) {
	var payload pipelinePayload
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: bad pipeline payload: %v", ErrValidation, err)
		}
	}
	if payload.Text == "" {
		return nil, fmt.Errorf("%w: missing text", ErrValidation)
	}
	vector, err := d.inference.Embed(ctx, payload.Text)
	if err != nil {
		return nil, err
	}
	artifact, err := json.Marshal(map[string]any{
		"request_id": req.ID,
		"vector":     vector,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: encode artifact: %w", err)
	}
	key := "artifacts/" + req.ID + ".json"
	if err := d.blobs.Put(ctx, key, artifact); err != nil {
		return nil, err
	}
	return map[string]any{"artifact_key": key, "dimensions": len(vector)}, nil
}

// runField delegates into the session actor's interaction contract.
func (d *Dispatcher) runField(ctx context.Context, req Request) (any, error) {
	session := req.Context.Session
	if session == "" {
		return nil, fmt.Errorf("%w: field interaction requires context.session", ErrValidation)
	}
	var interaction actor.Interaction
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &interaction); err != nil {
			return nil, fmt.Errorf("%w: bad interaction payload: %v", ErrValidation, err)
		}
	}
	a, err := d.registry.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	return a.Interact(ctx, interaction)
}

// enqueue serializes the request onto its type's queue and reports
// queued immediately.
func (d *Dispatcher) enqueue(ctx context.Context, req Request, start time.Time, weight float64) Response {
	name := QueueFor(req.Type)
	body, err := json.Marshal(req)
	if err != nil {
		return d.fail(ctx, req, start, weight, CodeValidation, fmt.Errorf("dispatch: encode queued request: %w", err))
	}
	if err := d.backlog.Send(ctx, name, body); err != nil {
		return d.fail(ctx, req, start, weight, CodePersistence, fmt.Errorf("dispatch: queue send: %w", err))
	}

	resp := Response{
		ID:     req.ID,
		Status: StatusQueued,
		Metrics: Metrics{
			DurationMS: msSince(start),
			Weight:     weight,
			Load:       d.CurrentLoad(),
			Queue:      name,
		},
	}
	d.persistResult(ctx, resp)
	observability.RecordDispatch(d.cfg.EdgeID, req.Type, req.Priority, StatusQueued, time.Since(start))
	log.Info().
		Str("request_id", req.ID).
		Str("queue", name).
		Float64("weight", weight).
		Float64("load", resp.Metrics.Load).
		Msg("request_queued")
	return resp
}

func (d *Dispatcher) fail(ctx context.Context, req Request, start time.Time, weight float64, code string, err error) Response {
	return d.terminal(ctx, req, start, weight, StatusFailed, &ErrorRecord{
		Code:      code,
		Message:   err.Error(),
		Context:   requestContext(req),
		Timestamp: time.Now(),
	})
}

func (d *Dispatcher) terminal(ctx context.Context, req Request, start time.Time, weight float64, status string, rec *ErrorRecord) Response {
	resp := Response{
		ID:     req.ID,
		Status: status,
		Error:  rec,
		Metrics: Metrics{
			DurationMS: msSince(start),
			Weight:     weight,
			Load:       d.CurrentLoad(),
		},
	}
	d.persistResult(ctx, resp)
	d.record(ctx, req, start, false, rec.Message)
	if d.analytics != nil {
		if err := d.analytics.InsertError(ctx, analytics.ErrorRow{
			Code:      rec.Code,
			Message:   rec.Message,
			Context:   rec.Context,
			CreatedAt: rec.Timestamp,
		}); err != nil {
			log.Warn().Err(err).Str("request_id", req.ID).Msg("analytics_error_write_failed")
		}
	}
	observability.RecordDispatch(d.cfg.EdgeID, req.Type, req.Priority, status, time.Since(start))
	log.Error().
		Str("request_id", req.ID).
		Str("code", rec.Code).
		Str("status", status).
		Str("message", rec.Message).
		Msg("request_failed")
	return resp
}

// persistResult stores the outcome keyed by request id for /status.
// Best effort: a write failure is logged, not surfaced. The response
// already reached the caller; only the later lookup loses it. Field
// state persistence is the strict boundary, not this cache.
func (d *Dispatcher) persistResult(ctx context.Context, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Warn().Err(err).Str("request_id", resp.ID).Msg("result_encode_failed")
		return
	}
	if err := d.results.Put(ctx, resultKey(resp.ID), data, d.cfg.ResultTTL); err != nil {
		log.Warn().Err(err).Str("request_id", resp.ID).Msg("result_write_failed")
	}
}

// Result fetches a stored dispatch outcome by request id.
func (d *Dispatcher) Result(ctx context.Context, requestID string) (Response, bool, error) {
	data, ok, err := d.results.Get(ctx, resultKey(requestID))
	if err != nil || !ok {
		return Response{}, false, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false, fmt.Errorf("dispatch: decode stored result: %w", err)
	}
	return resp, true, nil
}

// record appends the analytics row for a finished dispatch attempt.
func (d *Dispatcher) record(ctx context.Context, req Request, start time.Time, success bool, detail string) {
	if d.analytics == nil {
		return
	}
	row := analytics.RequestRow{
		RequestID:  req.ID,
		SessionID:  req.Context.Session,
		Type:       req.Type,
		Priority:   req.Priority,
		EdgeID:     d.cfg.EdgeID,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    success,
		Metadata:   detail,
	}
	if err := d.analytics.InsertRequest(ctx, row); err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("analytics_write_failed")
	}
}

func validate(req Request) error {
	if req.Type == "" {
		return fmt.Errorf("%w: missing type", ErrValidation)
	}
	return nil
}

func requestContext(req Request) string {
	if req.Context.Session != "" {
		return req.Type + "/" + req.Context.Session
	}
	return req.Type
}

func resultKey(id string) string { return "result:" + id }

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
