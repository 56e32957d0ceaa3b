package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/swcstudio/fieldctl/internal/queue"
)

// Replay builds the queue consumer's replay function: each backlog
// message is decoded back into a request and pushed through Process as
// a fresh dispatch attempt.
//
// A retryable failure returns an error so the queue redelivers the
// message; completed, queued, and timeout outcomes ack. Validation and
// unknown-type failures also ack: redelivery cannot fix the request.
// Bounding redelivery belongs to the queue's own policy.
func Replay(d *Dispatcher) queue.ReplayFunc {
	return func(ctx context.Context, msg queue.Message) error {
		var req Request
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return fmt.Errorf("dispatch: decode queued request: %w", err)
		}
		req.Retries = msg.Attempts

		resp := d.Process(ctx, req)
		if resp.Status == StatusFailed && retryable(resp.Error) {
			return fmt.Errorf("dispatch: replay of %s failed: %s", req.ID, resp.Error.Message)
		}
		return nil
	}
}

func retryable(rec *ErrorRecord) bool {
	if rec == nil {
		return true
	}
	switch rec.Code {
	case CodeValidation, CodeUnknownType:
		return false
	default:
		return true
	}
}
