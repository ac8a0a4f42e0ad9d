package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher drains the job queue with a fixed pool of workers. Each worker
// handles one job at a time end to end, so a slow extraction never blocks
// status reads, only other queued jobs.
type Dispatcher struct {
	manager *Manager
	queue   Queue
	size    int

	wg sync.WaitGroup
}

func NewDispatcher(manager *Manager, queue Queue, size int) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		manager: manager,
		queue:   queue,
		size:    size,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	for range d.size {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runWorker(ctx)
		}()
	}

	slog.Info("dispatcher running", slog.Int("workers", d.size))
}

// Stop blocks until every worker has finished its current job.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
	slog.Info("dispatcher stopped")
}

func (d *Dispatcher) runWorker(ctx context.Context) {
	for {
		id, ack, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("dequeue", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		// ack only after the job reached a terminal state, so a crash
		// mid-extraction redelivers instead of dropping the job
		d.manager.Process(ctx, id)
		ack()
	}
}
