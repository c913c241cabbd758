package state

// Params are the run parameters that must match for two ring hashes to be comparable.
type Params struct {
	Transfers    int    `json:"transfers"`
	TransferSize int    `json:"transfer_size"`
	RingDepth    uint32 `json:"ring_depth"`
}

// Record is the summary of the last run against one device.
type Record struct {
	RunID    string `json:"run_id"`
	Finished string `json:"finished"`

	Params Params `json:"params"`

	MemcpyThroughputMBps float64 `json:"memcpy_throughput_mbps"`
	DMAThroughputMBps    float64 `json:"dma_throughput_mbps"`
	DMABytes             uint64  `json:"dma_bytes"`
	RingHash             string  `json:"ring_hash"`
	Status               string  `json:"status"`
}

// State represents the on-disk persistent state.
type State struct {
	path string

	StateVersion int `json:"-" state:"-"`

	// Devices holds the last record per device key, see DeviceKey.
	Devices map[string]Record `json:"devices"`
}
