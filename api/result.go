package api

// RunStatus is the overall outcome recorded in a result file.
type RunStatus string

// Possible run outcomes.
const (
	StatusPass RunStatus = "PASS"
	StatusFail RunStatus = "FAIL"
)

// Verdict is the outcome of a single check.
type Verdict string

// Possible check outcomes.
const (
	VerdictPass Verdict = "PASS"
	VerdictWarn Verdict = "WARN"
	VerdictFail Verdict = "FAIL"
)

// Result is the persisted record of a validation run.
type Result struct {
	MemcpyThroughputMBps float64   `json:"memcpy_throughput_mbps" yaml:"memcpy_throughput_mbps"`
	DMAThroughputMBps    float64   `json:"dma_throughput_mbps"    yaml:"dma_throughput_mbps"`
	DMABytes             uint64    `json:"dma_bytes"              yaml:"dma_bytes"`
	RingHash             *string   `json:"ring_hash"              yaml:"ring_hash"`
	Status               RunStatus `json:"status"                 yaml:"status"`
}
