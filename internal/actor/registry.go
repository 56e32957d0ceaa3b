package actor

import (
	"context"
	"sync"

	"github.com/swcstudio/fieldctl/internal/field"
)

// Registry owns the per-session actors. A session's actor is created
// on first use, loading persisted state when it exists; its tick loop
// starts immediately and stops when the registry closes.
//
// Per-key serialization holds because each session maps to exactly one
// actor and the actor serializes on its own mutex. Distinct sessions
// run concurrently.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor
	store  Persister
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry builds an empty registry over the persistence boundary.
func NewRegistry(store Persister, cfg Config) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		actors: make(map[string]*Actor),
		store:  store,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Get returns the session's actor, creating it (and restoring its
// persisted state) on first access.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[sessionID]; ok {
		return a, nil
	}

	state, ok, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		state = field.NewState(sessionID)
	}

	a := New(state, r.store, r.cfg)
	a.StartTicks(r.ctx)
	r.actors[sessionID] = a
	return a, nil
}

// Evict stops a session's actor and drops it from the registry. Its
// persisted state remains; the next Get restores it.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	a, ok := r.actors[sessionID]
	if ok {
		delete(r.actors, sessionID)
	}
	r.mu.Unlock()
	if ok {
		a.Stop()
	}
}

// Sessions lists the sessions with a live actor.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.actors))
	for id := range r.actors {
		out = append(out, id)
	}
	return out
}

// Close cancels every tick loop and waits for them to exit.
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.actors = make(map[string]*Actor)
	r.mu.Unlock()
	for _, a := range actors {
		a.Stop()
	}
}
