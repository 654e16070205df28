package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// WriteJob represents a unit of work to execute against the database.
type WriteJob interface {
	Execute(ctx context.Context, db DB) error
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(ctx context.Context, db DB) error

func (f WriteJobFunc) Execute(ctx context.Context, db DB) error {
	return f(ctx, db)
}

// BatchWriter owns the database writes of the process: jobs are queued on a
// channel and executed in batches by a single goroutine.
type BatchWriter struct {
	db        DB
	jobs      chan WriteJob
	batchSize int
	flushMs   int
	dropped   atomic.Int64
	failed    atomic.Int64
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewBatchWriter(db DB, bufferSize, batchSize, flushMs int) *BatchWriter {
	w := &BatchWriter{
		db:        db,
		jobs:      make(chan WriteJob, bufferSize),
		batchSize: batchSize,
		flushMs:   flushMs,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue queues job without blocking; a full queue drops it.
func (w *BatchWriter) Enqueue(job WriteJob) {
	select {
	case w.jobs <- job:
	default:
		w.dropped.Add(1)
		log.Warn().Int64("dropped", w.dropped.Load()).Msg("write queue full, dropping job")
	}
}

// Dropped reports how many jobs were discarded because the queue was full.
func (w *BatchWriter) Dropped() int64 { return w.dropped.Load() }

// Failed reports how many jobs returned an error.
func (w *BatchWriter) Failed() int64 { return w.failed.Load() }

func (w *BatchWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Duration(w.flushMs) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]WriteJob, 0, w.batchSize)

	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, job)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(batch []WriteJob) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, job := range batch {
		if err := job.Execute(ctx, w.db); err != nil {
			w.failed.Add(1)
			log.Error().Err(err).Msg("write job failed")
		}
	}
}

// Shutdown flushes queued jobs and stops the writer. Enqueue must not be
// called after Shutdown.
func (w *BatchWriter) Shutdown() {
	w.closeOnce.Do(func() { close(w.jobs) })
	w.wg.Wait()
}
