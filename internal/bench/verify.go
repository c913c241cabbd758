package bench

import (
	"context"
	"log/slog"

	"github.com/nymph-fabric/fabric-bench/internal/fabric"
)

// StatusReader fetches the fabric status.
type StatusReader interface {
	Status(ctx context.Context) (*fabric.Status, error)
}

// Verification is the device-path measurement after the status query.
type Verification struct {
	Status *fabric.Status

	// RequestedBytes is count * transfer size.
	RequestedBytes uint64

	// Bytes is the device-reported byte count, or RequestedBytes without a status.
	Bytes uint64

	// RingHash is the lowercase hex ring hash, empty without a status.
	RingHash string

	// ThroughputMBps always uses RequestedBytes over the submission time.
	ThroughputMBps float64
}

// Verify queries the status once and derives the device-path figures from it and the
// submission loop. A failed query degrades the result instead of failing it.
func Verify(ctx context.Context, reader StatusReader, requested uint64, submit SubmitResult) Verification {
	v := Verification{
		RequestedBytes: requested,
		Bytes:          requested,
		ThroughputMBps: ThroughputMBps(requested, submit.Elapsed),
	}

	status, err := reader.Status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get fabric status", "err", err)

		return v
	}

	v.Status = status
	v.Bytes = status.DMABytes
	v.RingHash = status.HashHex()

	return v
}
