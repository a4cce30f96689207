package writer

import (
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
)

// Store is the durable sink for normalized batches. A single call must
// make every batch visible atomically (wide and tall together).
type Store interface {
	InsertNormalizedBatches(batches []types.NormalizedBatch) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(batches []types.NormalizedBatch) error

func (f StoreFunc) InsertNormalizedBatches(batches []types.NormalizedBatch) error {
	return f(batches)
}

// Options tune the batching behavior.
type Options struct {
	// MaxBatchSize is the pending record count (wide + tall rows) that
	// forces an inline flush.
	MaxBatchSize int
	// FlushInterval bounds how long records sit in the buffer when the
	// size threshold is not reached. Zero disables the background flush.
	FlushInterval time.Duration
	// MaxRetries is how many times a failing flush is reattempted with
	// the batch intact.
	MaxRetries int
	// RetryDelay is the base delay between attempts, grown linearly.
	RetryDelay time.Duration
}

// DefaultOptions mirror the configuration surface defaults.
func DefaultOptions() Options {
	return Options{
		MaxBatchSize:  1000,
		FlushInterval: 5 * time.Second,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
	}
}
