// Package queue hands submitted job IDs to the worker pool. The channel
// backend keeps everything in-process; the NATS backend survives restarts
// and lets several instances share one stream. Messages are acked only
// after processing, so a crashed worker's job is redelivered rather than
// lost.
package queue

import (
	"context"
	"fmt"
)

type channelQueue struct {
	ch chan string
}

func NewChannelQueue(capacity int) *channelQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &channelQueue{ch: make(chan string, capacity)}
}

func (q *channelQueue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("empty jobID")
	}

	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("enqueue job %s: queue full", jobID)
	}
}

func (q *channelQueue) Dequeue(ctx context.Context) (string, func(), error) {
	select {
	case id := <-q.ch:
		// in-process delivery has nothing to redeliver from
		return id, func() {}, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}
