package bench

import (
	"context"
	"log/slog"
	"time"

	"github.com/nymph-fabric/fabric-bench/internal/fabric"
)

// Synthetic base addresses of the submitted transfers. The driver owns their validation.
const (
	SourceBase      uint64 = 0x2000000
	DestinationBase uint64 = 0x3000000
)

// Submitter issues transfer descriptors.
type Submitter interface {
	Submit(ctx context.Context, desc fabric.Descriptor) error
}

// SubmitResult is the outcome of a submission loop.
type SubmitResult struct {
	Attempted int
	Failed    int

	// Elapsed covers issuing the requests only. The protocol has no completion wait,
	// so this is not the time the device took to move the data.
	Elapsed time.Duration
}

// Descriptor returns the i-th descriptor of a run moving size bytes per transfer.
func Descriptor(i int, size uint32) fabric.Descriptor {
	offset := uint64(i) * uint64(size) //nolint:gosec

	return fabric.Descriptor{
		SrcAddr: SourceBase + offset,
		DstAddr: DestinationBase + offset,
		Length:  size,
	}
}

// SubmitAll issues count descriptors in order. A failed submission is logged and the
// loop carries on with the next one.
func SubmitAll(ctx context.Context, sub Submitter, count int, size uint32, now func() time.Time) SubmitResult {
	if now == nil {
		now = time.Now
	}

	res := SubmitResult{}

	start := now()

	for i := range count {
		res.Attempted++

		err := sub.Submit(ctx, Descriptor(i, size))
		if err != nil {
			res.Failed++

			slog.WarnContext(ctx, "Failed to submit DMA transfer", "index", i, "err", err)
		}
	}

	res.Elapsed = now().Sub(start)

	return res
}
