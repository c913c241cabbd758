package api

// Config represents the configuration of a validation run.
type Config struct {
	Device string `json:"device" yaml:"device"` // Path to the control channel.
	Stub   bool   `json:"stub"   yaml:"stub"`   // If true, use the in-process stub device instead of Device.

	Transfers    int     `json:"transfers"     yaml:"transfers"`     // Number of descriptors to submit.
	TransferSize int     `json:"transfer_size" yaml:"transfer_size"` // Length of each descriptor in bytes.
	RingDepth    uint32  `json:"ring_depth"    yaml:"ring_depth"`    // Requested ring size.
	BaselineSize int     `json:"baseline_size" yaml:"baseline_size"` // Size of the memcpy baseline buffer in bytes.
	Threshold    float64 `json:"threshold"     yaml:"threshold"`     // Fraction of the memcpy throughput the device must reach to avoid a warning.

	Output      string `json:"output"   yaml:"output"`   // Path of the JSON result file.
	StatePath   string `json:"state"    yaml:"state"`    // Path of the persisted run state, empty to disable.
	HistoryPath string `json:"history"  yaml:"history"`  // Path of the SQLite run history, empty to disable.
	Schedule    string `json:"schedule" yaml:"schedule"` // Crontab for periodic validation, empty for a single run.
}

// RequestedBytes returns the total number of bytes the run asks the device to move.
func (c *Config) RequestedBytes() uint64 {
	return uint64(c.Transfers) * uint64(c.TransferSize) //nolint:gosec
}
