package collector

import (
	"io"
	"sync"
	"sync/atomic"
)

// LoggerReader reads CRC-framed sensor lines from a serial datalogger.
type LoggerReader struct {
	device        string
	baudrate      uint
	serialPort    io.ReadWriteCloser
	latestPayload map[string]float64
	payloadMutex  sync.RWMutex

	// stopSignal is set by StopReading and polled by the reader goroutine.
	stopSignal atomic.Bool
}
