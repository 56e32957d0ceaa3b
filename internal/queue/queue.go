package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownMessage = errors.New("queue: unknown in-flight message")
)

// Message is one unit of deferred work on a named queue.
type Message struct {
	ID         string    `json:"id"`
	Queue      string    `json:"queue"`
	Body       []byte    `json:"body"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is the backlog boundary: send, batch receive, then ack or
// retry per message. Retry re-enqueues at the tail with the attempt
// counter bumped; bounding redelivery is the queue's policy, not the
// consumer's.
type Queue interface {
	Send(ctx context.Context, queue string, body []byte) error
	ReceiveBatch(ctx context.Context, queue string, max int) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Retry(ctx context.Context, msg Message) error
}

// Memory is an in-process multi-queue. Received messages are parked
// in-flight until acked or retried.
type Memory struct {
	mu       sync.Mutex
	queues   map[string][]Message
	inflight map[string]Message
}

// NewMemory constructs an empty in-process queue set.
func NewMemory() *Memory {
	return &Memory{
		queues:   make(map[string][]Message),
		inflight: make(map[string]Message),
	}
}

func (m *Memory) Send(_ context.Context, queue string, body []byte) error {
	msg := Message{
		ID:         uuid.NewString(),
		Queue:      queue,
		Body:       append([]byte(nil), body...),
		EnqueuedAt: time.Now(),
	}
	m.mu.Lock()
	m.queues[queue] = append(m.queues[queue], msg)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReceiveBatch(_ context.Context, queue string, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.queues[queue]
	n := len(pending)
	if n > max {
		n = max
	}
	if n == 0 {
		return nil, nil
	}
	batch := make([]Message, n)
	copy(batch, pending[:n])
	m.queues[queue] = pending[n:]
	for _, msg := range batch {
		m.inflight[msg.ID] = msg
	}
	return batch, nil
}

func (m *Memory) Ack(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[msg.ID]; !ok {
		return ErrUnknownMessage
	}
	delete(m.inflight, msg.ID)
	return nil
}

func (m *Memory) Retry(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[msg.ID]; !ok {
		return ErrUnknownMessage
	}
	delete(m.inflight, msg.ID)
	msg.Attempts++
	m.queues[msg.Queue] = append(m.queues[msg.Queue], msg)
	return nil
}

// Depths returns the backlog size per queue, in-flight excluded.
func (m *Memory) Depths() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.queues))
	for name, msgs := range m.queues {
		out[name] = len(msgs)
	}
	return out
}

// Names lists known queue names in stable order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.queues))
	for name := range m.queues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
