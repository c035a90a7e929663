// Package importer drives uploads through parsing and validation and replays
// staged batches against ERPNext in the background.
package importer

import (
	"context"
	"errors"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/metrics"
)

// ErrQueueFull is returned when the batch queue is full
var ErrQueueFull = errors.New("queue is full")

// DefaultQueueSize is used when NewQueue gets a non-positive size
const DefaultQueueSize = 1000

// Queue hands batch ids to workers
type Queue struct {
	ch      chan string
	metrics *metrics.Registry
}

func NewQueue(size int, m *metrics.Registry) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan string, size), metrics: m}
}

// Enqueue adds a batch id without blocking.
// Returns ErrQueueFull if the queue is full.
func (q *Queue) Enqueue(batchID string) error {
	select {
	case q.ch <- batchID:
		q.metrics.SetQueueDepth(len(q.ch))
		return nil
	default:
		return ErrQueueFull
	}
}

// Next returns the next batch id (blocking)
func (q *Queue) Next(ctx context.Context) (string, error) {
	select {
	case id := <-q.ch:
		q.metrics.SetQueueDepth(len(q.ch))
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len is the number of waiting batch ids
func (q *Queue) Len() int { return len(q.ch) }
