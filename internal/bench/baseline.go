package bench

import (
	"bytes"
	"time"
)

// BaselinePattern is the byte the baseline source buffer is filled with.
const BaselinePattern = 'A'

// BaselineResult is the outcome of the local memory copy benchmark.
type BaselineResult struct {
	Bytes          uint64
	Elapsed        time.Duration
	ThroughputMBps float64
}

// Baseline times one full copy of a size-byte buffer. It never touches the device.
func Baseline(size int, now func() time.Time) BaselineResult {
	if now == nil {
		now = time.Now
	}

	src := bytes.Repeat([]byte{BaselinePattern}, size)
	dst := make([]byte, size)

	start := now()
	n := copy(dst, src)
	elapsed := now().Sub(start)

	return BaselineResult{
		Bytes:          uint64(n), //nolint:gosec
		Elapsed:        elapsed,
		ThroughputMBps: ThroughputMBps(uint64(n), elapsed), //nolint:gosec
	}
}
