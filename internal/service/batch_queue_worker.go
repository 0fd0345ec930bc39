package service

import (
	"context"
	"log"
	"sync"
	"time"

	"scanflow/internal/pipeline"
	"scanflow/internal/port"
)

// BatchQueueConfig holds settings for the batch queue worker.
type BatchQueueConfig struct {
	PollInterval time.Duration
	Concurrency  int
	BatchTimeout time.Duration
}

// BatchQueueWorker polls for queued batches and dispatches them through the
// processing pipeline.
type BatchQueueWorker struct {
	repo    port.BatchRepository
	batches *pipeline.BatchService
	cfg     BatchQueueConfig
	wg      sync.WaitGroup
}

// NewBatchQueueWorker creates a new BatchQueueWorker.
func NewBatchQueueWorker(repo port.BatchRepository, batches *pipeline.BatchService, cfg BatchQueueConfig) *BatchQueueWorker {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Minute
	}
	return &BatchQueueWorker{
		repo:    repo,
		batches: batches,
		cfg:     cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight batches have finished.
func (w *BatchQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("batchQueueWorker: started (poll=%s, concurrency=%d)",
		w.cfg.PollInterval, w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			log.Printf("batchQueueWorker: shutting down, waiting for in-flight batches...")
			w.wg.Wait()
			log.Printf("batchQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			claimed, err := w.repo.ClaimQueued(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Printf("batchQueueWorker: ClaimQueued error: %v", err)
				continue
			}

			for i := range claimed {
				batch := claimed[i] // copy for goroutine

				sem <- struct{}{} // acquire
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }() // release

					// Use a fresh context independent of the poll context
					// so in-flight batches complete even during shutdown.
					procCtx, cancel := context.WithTimeout(context.Background(), w.cfg.BatchTimeout)
					defer cancel()

					log.Printf("batchQueueWorker: dispatching batch %s", batch.ID)
					if err := w.batches.ProcessBatch(procCtx, &batch); err != nil {
						log.Printf("batchQueueWorker: batch %s: %v", batch.ID, err)
					}
				}()
			}
		}
	}
}
