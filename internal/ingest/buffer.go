package ingest

import (
	"context"
	"sync"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Buffer accumulates validated candidates between scheduled scan ticks.
// The NATS subscriber appends; the threat-scan drains. Bounded so a
// stalled pipeline cannot grow memory without limit; overflow drops the
// oldest candidates first.
type Buffer struct {
	mu       sync.Mutex
	pending  []model.Threat
	capacity int
	dropped  int64
}

// NewBuffer creates a buffer holding at most capacity candidates.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{capacity: capacity}
}

// Add appends a batch, evicting the oldest entries on overflow.
func (b *Buffer) Add(candidates []model.Threat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, candidates...)
	if overflow := len(b.pending) - b.capacity; overflow > 0 {
		b.pending = b.pending[overflow:]
		b.dropped += int64(overflow)
	}
}

// Name implements pipeline.Source.
func (b *Buffer) Name() string { return "nats-candidate-buffer" }

// Collect drains and returns all pending candidates.
func (b *Buffer) Collect(_ context.Context) ([]model.Threat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out, nil
}

// Dropped reports how many candidates were evicted on overflow.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
