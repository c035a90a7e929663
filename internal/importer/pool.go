package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/batch"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
)

// Pool runs batches from a Queue on a fixed number of workers
type Pool struct {
	queue     *Queue
	store     batch.Store
	processor *Processor
	workers   int
	log       logrus.FieldLogger

	wg sync.WaitGroup
}

func NewPool(queue *Queue, store batch.Store, processor *Processor, workers int, log logrus.FieldLogger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Pool{queue: queue, store: store, processor: processor, workers: workers, log: log}
}

// Start launches the workers. They stop taking new batches when ctx is done;
// a batch already started runs to completion on a context that ignores ctx.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(n int) {
			defer p.wg.Done()
			p.worker(ctx, n)
		}(i + 1)
	}
}

// Wait blocks until every worker has returned or ctx expires
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes batches from the queue, one at a time
func (p *Pool) worker(ctx context.Context, n int) {
	log := p.log.WithField("worker", n)
	for {
		id, err := p.queue.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.WithError(err).Error("error getting next batch")
			time.Sleep(time.Second)
			continue
		}

		if err := p.processor.Process(context.WithoutCancel(ctx), id); err != nil {
			log.WithError(err).WithField("batch_id", id).Error("batch failed")
		}
	}
}

// Recover re-queues pending batches and fails batches that were left in
// processing by a previous run
func (p *Pool) Recover(ctx context.Context) error {
	stuck, err := p.store.ListBatchesByStatus(ctx, batch.StatusProcessing)
	if err != nil {
		return fmt.Errorf("list processing batches: %w", err)
	}
	for _, b := range stuck {
		_ = p.processor.fail(ctx, b, b.Errors, errors.New("interrupted by server restart"))
	}

	pending, err := p.store.ListBatchesByStatus(ctx, batch.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending batches: %w", err)
	}
	requeued := 0
	for _, b := range pending {
		if err := p.queue.Enqueue(b.ID); err != nil {
			_ = p.processor.fail(ctx, b, nil, err)
			continue
		}
		requeued++
	}

	if len(stuck) > 0 || requeued > 0 {
		p.log.WithFields(logrus.Fields{"failed": len(stuck), "requeued": requeued}).Info("recovered batches from previous run")
	}
	return nil
}
