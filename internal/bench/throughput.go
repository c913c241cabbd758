// Package bench measures the pcie_nymph DMA path against a local memory copy and
// evaluates the outcome.
package bench

import (
	"time"
)

// MiB is the binary megabyte used for every throughput figure.
const MiB = 1024 * 1024

// ThroughputMBps converts a byte count moved in elapsed into MB/s (binary megabytes).
// It returns 0 when no time was measured.
func ThroughputMBps(bytes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(bytes) / elapsed.Seconds() / MiB
}
