package actor

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event is one best-effort notification pushed to subscribers after a
// mutating interaction.
type Event struct {
	SessionID     string  `json:"session_id"`
	Kind          string  `json:"kind"`
	FieldStrength float64 `json:"field_strength"`
	PatternCount  int     `json:"pattern_count"`
	Coherence     float64 `json:"temporal_coherence"`
}

// Fanout holds weak references to subscriber channels. Delivery is
// non-blocking: a full or abandoned channel is skipped, never waited
// on, so a slow subscriber cannot fail the owning interaction.
type Fanout struct {
	mu   sync.RWMutex
	subs map[string]chan<- Event
}

// NewFanout constructs an empty subscriber registry.
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]chan<- Event)}
}

// Subscribe registers a channel under the subscriber id, replacing any
// previous registration for the same id.
func (f *Fanout) Subscribe(id string, ch chan<- Event) {
	f.mu.Lock()
	f.subs[id] = ch
	f.mu.Unlock()
}

// Unsubscribe drops the subscriber. The channel is not closed; its
// lifecycle belongs to the subscriber.
func (f *Fanout) Unsubscribe(id string) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

// Subscribers returns the registered ids in stable order.
func (f *Fanout) Subscribers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.subs))
	for id := range f.subs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Publish delivers the event to every subscriber that can take it
// immediately and reports how many deliveries landed.
func (f *Fanout) Publish(ev Event) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	delivered := 0
	for id, ch := range f.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			log.Debug().
				Str("session", ev.SessionID).
				Str("subscriber", id).
				Msg("fanout_skipped")
		}
	}
	return delivered
}
