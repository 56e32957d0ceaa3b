package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/swcstudio/fieldctl/internal/field"
)

var ErrCorruptState = errors.New("persist: corrupt stored state")

// Adapter stores one field state per session key with a split layout:
// the scalar/struct fields go into a single blob, while the harmonics
// vector and the connection set are written under their own keys. The
// split keeps shapes the substrate cannot represent natively out of
// the main record, and lets the connection set churn without
// rewriting the blob.
type Adapter struct {
	kv KV
}

// NewAdapter wraps a KV store in the split serializer.
func NewAdapter(kv KV) *Adapter {
	return &Adapter{kv: kv}
}

func stateKey(sessionID string) string       { return "field:" + sessionID }
func harmonicsKey(sessionID string) string   { return "field:" + sessionID + ":harmonics" }
func connectionsKey(sessionID string) string { return "field:" + sessionID + ":connections" }

// Save writes the field state. A failed write of any of the three
// entries fails the save; the enclosing interaction must surface it.
func (a *Adapter) Save(ctx context.Context, s *field.State) error {
	blob := *s
	blob.Harmonics = nil
	blob.ActiveConnections = nil

	blobBytes, err := json.Marshal(&blob)
	if err != nil {
		return fmt.Errorf("persist: encode state blob: %w", err)
	}
	harmonicsBytes, err := json.Marshal(s.Harmonics)
	if err != nil {
		return fmt.Errorf("persist: encode harmonics: %w", err)
	}
	connectionsBytes, err := json.Marshal(s.ActiveConnections)
	if err != nil {
		return fmt.Errorf("persist: encode connections: %w", err)
	}

	if err := a.kv.Put(ctx, stateKey(s.SessionID), blobBytes, 0); err != nil {
		return err
	}
	if err := a.kv.Put(ctx, harmonicsKey(s.SessionID), harmonicsBytes, 0); err != nil {
		return err
	}
	return a.kv.Put(ctx, connectionsKey(s.SessionID), connectionsBytes, 0)
}

// Load reconstructs a field state, merging the harmonics vector and
// connection set back into the blob. Returns ok=false when no state
// has been stored for the session.
func (a *Adapter) Load(ctx context.Context, sessionID string) (*field.State, bool, error) {
	blobBytes, ok, err := a.kv.Get(ctx, stateKey(sessionID))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var state field.State
	if err := json.Unmarshal(blobBytes, &state); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorruptState, sessionID, err)
	}

	harmonicsBytes, ok, err := a.kv.Get(ctx, harmonicsKey(sessionID))
	if err != nil {
		return nil, false, err
	}
	if ok {
		if err := json.Unmarshal(harmonicsBytes, &state.Harmonics); err != nil {
			return nil, false, fmt.Errorf("%w: %s harmonics: %v", ErrCorruptState, sessionID, err)
		}
	}
	if len(state.Harmonics) == 0 {
		state.Harmonics = field.DefaultHarmonics()
	}

	connectionsBytes, ok, err := a.kv.Get(ctx, connectionsKey(sessionID))
	if err != nil {
		return nil, false, err
	}
	if ok {
		if err := json.Unmarshal(connectionsBytes, &state.ActiveConnections); err != nil {
			return nil, false, fmt.Errorf("%w: %s connections: %v", ErrCorruptState, sessionID, err)
		}
	}
	if state.ActiveConnections == nil {
		state.ActiveConnections = make([]string, 0)
	}
	if state.Patterns == nil {
		state.Patterns = make([]field.Pattern, 0)
	}
	return &state, true, nil
}

// Reset removes every stored entry for the session.
func (a *Adapter) Reset(ctx context.Context, sessionID string) error {
	if err := a.kv.Delete(ctx, stateKey(sessionID)); err != nil {
		return err
	}
	if err := a.kv.Delete(ctx, harmonicsKey(sessionID)); err != nil {
		return err
	}
	return a.kv.Delete(ctx, connectionsKey(sessionID))
}
