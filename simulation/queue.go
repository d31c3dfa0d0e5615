package simulation

import (
	"sync"

	"fluidsim/core"
)

// InteractionQueue is an unbounded FIFO of interaction samples. Any number
// of goroutines may Push; the simulation goroutine drains it once per step.
type InteractionQueue struct {
	mu      sync.Mutex
	pending []core.InteractionSample
	spare   []core.InteractionSample
}

// NewInteractionQueue returns an empty queue.
func NewInteractionQueue() *InteractionQueue {
	return &InteractionQueue{}
}

// Push appends a sample. It never blocks on the consumer.
func (q *InteractionQueue) Push(s core.InteractionSample) {
	q.mu.Lock()
	q.pending = append(q.pending, s)
	q.mu.Unlock()
}

// Drain removes and returns every pending sample in push order. The
// returned slice is only valid until the next Drain.
func (q *InteractionQueue) Drain() []core.InteractionSample {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = q.spare[:0]
	q.spare = out
	return out
}

// Discard drops every pending sample and returns how many were dropped.
func (q *InteractionQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	q.pending = q.pending[:0]
	return n
}

// Len returns the number of pending samples.
func (q *InteractionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
