// Package report renders the outcome of a validation run for humans and for tooling.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/bench"
	"github.com/nymph-fabric/fabric-bench/internal/device"
	"github.com/nymph-fabric/fabric-bench/internal/host"
)

// Title is printed at the top of every report.
const Title = "NYMPH 1.1 DMA vs memcpy Validation"

var rule = strings.Repeat("=", 60)

// AbbreviateHash shortens a hex hash to its first and last 16 characters.
func AbbreviateHash(hash string) string {
	if len(hash) <= 32 {
		return hash
	}

	return hash[:16] + "..." + hash[len(hash)-16:]
}

// Print writes the console report of a run. Host information is optional.
func Print(w io.Writer, o *bench.Outcome, info *host.Info) error {
	buf := &bytes.Buffer{}

	fmt.Fprintln(buf, rule)
	fmt.Fprintln(buf, Title)
	fmt.Fprintln(buf, rule)

	if info != nil {
		fmt.Fprintf(buf, "  Host:   %s\n", info)
		fmt.Fprintf(buf, "  Driver: %s\n", lo.Ternary(info.Driver != "", info.Driver, "unknown"))
	}

	fmt.Fprintf(buf, "  Run:    %s\n", o.RunID)
	fmt.Fprintln(buf)

	printStages(buf, o)

	_, err := w.Write(buf.Bytes())

	return err
}

// openFailureHint suggests a remedy for an open failure, if one is known.
func openFailureHint(err error) string {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		return "Is the pcie_nymph driver loaded?"
	case errors.Is(err, device.ErrPermissionDenied):
		return "Permission denied. Run with sudo."
	default:
		return ""
	}
}

func printStages(buf *bytes.Buffer, o *bench.Outcome) {
	fmt.Fprintln(buf, "[1/4] Opening device...")

	if !o.Reached(bench.StateOpened) {
		fmt.Fprintf(buf, "      ✗ %v\n", o.Err)

		hint := openFailureHint(o.Err)
		if hint != "" {
			fmt.Fprintf(buf, "      %s\n", hint)
		}

		return
	}

	fmt.Fprintf(buf, "      ✓ Device opened: %s\n", lo.Ternary(o.Config.Stub, o.Config.Device+" (stub)", o.Config.Device))
	fmt.Fprintln(buf)

	fmt.Fprintln(buf, "[2/4] Testing memcpy performance...")
	fmt.Fprintf(buf, "      memcpy: %.2f MB/s (%.2f ms)\n", o.Baseline.ThroughputMBps, float64(o.Baseline.Elapsed.Microseconds())/1000)
	fmt.Fprintln(buf)

	fmt.Fprintln(buf, "[3/4] Testing DMA throughput (via driver)...")

	v := o.Verification
	if v == nil {
		fmt.Fprintln(buf, "      ✗ DMA test failed")

		if o.Err != nil {
			fmt.Fprintf(buf, "      %v\n", o.Err)
		}

		fmt.Fprintln(buf)
		printResults(buf, o)

		return
	}

	fmt.Fprintf(buf, "      DMA: %.2f MB/s\n", v.ThroughputMBps)

	if o.Submit.Failed > 0 {
		fmt.Fprintf(buf, "      Failed submissions: %d of %d\n", o.Submit.Failed, o.Submit.Attempted)
	}

	if v.RingHash != "" {
		fmt.Fprintf(buf, "      Hash: %s\n", AbbreviateHash(v.RingHash))
	}

	fmt.Fprintf(buf, "      Total bytes: %s\n", humanize.Comma(int64(v.Bytes))) //nolint:gosec
	fmt.Fprintln(buf)

	printResults(buf, o)
}

func printResults(buf *bytes.Buffer, o *bench.Outcome) {
	res := o.Result()

	fmt.Fprintln(buf, "[4/4] Results:")
	fmt.Fprintln(buf, rule)
	fmt.Fprintf(buf, "  memcpy throughput: %.2f MB/s\n", res.MemcpyThroughputMBps)
	fmt.Fprintf(buf, "  DMA throughput:    %.2f MB/s\n", res.DMAThroughputMBps)

	if res.RingHash != nil {
		fmt.Fprintf(buf, "  Ring hash:         %s\n", *res.RingHash)
	}

	if o.HashCheck != "" {
		fmt.Fprintf(buf, "  Hash check:        %s\n", o.HashCheck)
	}

	fmt.Fprintln(buf)

	e := o.Evaluation
	if res.Status != api.StatusPass {
		fmt.Fprintln(buf, "  ✗ FAIL: DMA test failed")
		fmt.Fprintln(buf, rule)

		return
	}

	fmt.Fprintln(buf, "  ✓ PASS: DMA interface functional")
	fmt.Fprintln(buf, lo.Ternary(e.Hash == api.VerdictPass,
		"  ✓ PASS: Hash computed successfully",
		"  ⚠ WARN: Hash unavailable"))
	fmt.Fprintln(buf, lo.Ternary(e.Throughput == api.VerdictPass,
		"  ✓ PASS: DMA throughput acceptable (stub mode)",
		"  ⚠ WARN: DMA throughput lower than expected (stub mode)"))
	fmt.Fprintln(buf, rule)
}
