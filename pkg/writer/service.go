// The persistence writer batches normalized records for throughput. The
// pending buffer is the one piece of shared mutable state on the
// ingestion path; append and swap-to-flush both happen under a single
// mutex so no reader ever observes a half-written buffer. Flushing
// itself runs outside the lock.
package writer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/promstats"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	log "github.com/sirupsen/logrus"
)

// ErrFlushFailed is returned when a flush exhausted its retries. The
// affected batches are delivered on FailedBatches, never dropped.
var ErrFlushFailed = errors.New("persistence flush failed")

type Writer struct {
	store Store
	opts  Options

	mu             sync.Mutex
	pending        []types.NormalizedBatch
	pendingRecords int

	failed chan []types.NormalizedBatch
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewWriter(store Store, opts Options) *Writer {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Writer{
		store:  store,
		opts:   opts,
		failed: make(chan []types.NormalizedBatch, 16),
		stop:   make(chan struct{}),
	}
}

// Start launches the background interval flush. Optional; Write still
// flushes at the size threshold without it.
func (w *Writer) Start() {
	if w.opts.FlushInterval <= 0 {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.opts.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.Flush(); err != nil {
					log.Errorf("Interval flush failed: %v", err)
				}
			case <-w.stop:
				return
			}
		}
	}()
}

// Write appends one normalized batch to the buffer. When the pending
// record count reaches MaxBatchSize the buffer is flushed inline and
// that flush's outcome is returned, so the triggering caller learns
// whether its batch is durable.
func (w *Writer) Write(batch *types.NormalizedBatch) error {
	if batch == nil {
		return nil
	}

	w.mu.Lock()
	w.pending = append(w.pending, *batch)
	w.pendingRecords += batch.RecordCount()
	if w.pendingRecords < w.opts.MaxBatchSize {
		w.mu.Unlock()
		return nil
	}
	toFlush := w.swapLocked()
	w.mu.Unlock()

	return w.flush(toFlush)
}

// Flush writes out everything currently buffered. Called on shutdown
// and by the interval loop.
func (w *Writer) Flush() error {
	w.mu.Lock()
	toFlush := w.swapLocked()
	w.mu.Unlock()

	if len(toFlush) == 0 {
		return nil
	}
	return w.flush(toFlush)
}

// Close stops the background flush and drains the buffer.
func (w *Writer) Close() error {
	close(w.stop)
	w.wg.Wait()
	return w.Flush()
}

// FailedBatches delivers batches whose flush exhausted its retries so
// the caller can log, count, or re-ingest them.
func (w *Writer) FailedBatches() <-chan []types.NormalizedBatch {
	return w.failed
}

// PendingRecords reports the buffered record count.
func (w *Writer) PendingRecords() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingRecords
}

// swapLocked takes ownership of the pending buffer. Caller holds mu.
func (w *Writer) swapLocked() []types.NormalizedBatch {
	toFlush := w.pending
	w.pending = nil
	w.pendingRecords = 0
	return toFlush
}

func (w *Writer) flush(batches []types.NormalizedBatch) error {
	if len(batches) == 0 {
		return nil
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		lastErr = w.store.InsertNormalizedBatches(batches)
		if lastErr == nil {
			promstats.FlushesTotal.WithLabelValues("success").Inc()
			promstats.FlushDuration.Observe(time.Since(start).Seconds())
			return nil
		}
		log.Warnf("Flush attempt %d/%d failed for %d batches: %v",
			attempt, w.opts.MaxRetries, len(batches), lastErr)
		if attempt < w.opts.MaxRetries {
			time.Sleep(time.Duration(attempt) * w.opts.RetryDelay)
		}
	}

	promstats.FlushesTotal.WithLabelValues("failure").Inc()
	promstats.FlushDuration.Observe(time.Since(start).Seconds())

	// Surface the batches; a full channel means nobody is consuming
	// failures, so the error return is the remaining signal.
	select {
	case w.failed <- batches:
	default:
		log.Errorf("Failed-batch channel full, %d batches reported by error only", len(batches))
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrFlushFailed, w.opts.MaxRetries, lastErr)
}
