// Package state persists a summary of previous validation runs in a line based text file.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nymph-fabric/fabric-bench/api"
)

var currentStateVersion = len(upgrades)

// LoadOrCreate parses the on-disk state file and returns a State struct.
// If no file exists, a new empty one is created.
func LoadOrCreate(path string) (*State, error) {
	s := State{
		path: path,

		StateVersion: currentStateVersion,

		Devices: map[string]Record{},
	}

	body, err := os.ReadFile(s.path) //nolint:gosec
	if err == nil {
		err = Decode(body, nil, &s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		return &s, nil
	}

	if os.IsNotExist(err) {
		// State file doesn't exist, create it and return it.
		err = s.Save()
		if err != nil {
			return nil, err
		}

		return &s, nil
	}

	return nil, err
}

// Save writes out the current state struct into its on-disk storage.
func (s *State) Save() error {
	body, err := Encode(s)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(s.path), 0o755)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, body, 0o600)
}

// DeviceKey turns a control channel path into a key usable in the state file.
func DeviceKey(path string, stub bool) string {
	key := strings.NewReplacer(".", "_", "[", "_", "]", "_", ":", "_", " ", "_").Replace(filepath.Base(path))
	if stub {
		key += "_stub"
	}

	return key
}

// NewRecord builds the record of a finished run.
func NewRecord(runID string, cfg api.Config, res api.Result, finished time.Time) Record {
	rec := Record{
		RunID:    runID,
		Finished: finished.UTC().Format(time.RFC3339),
		Params: Params{
			Transfers:    cfg.Transfers,
			TransferSize: cfg.TransferSize,
			RingDepth:    cfg.RingDepth,
		},
		MemcpyThroughputMBps: res.MemcpyThroughputMBps,
		DMAThroughputMBps:    res.DMAThroughputMBps,
		DMABytes:             res.DMABytes,
		Status:               string(res.Status),
	}

	if res.RingHash != nil {
		rec.RingHash = *res.RingHash
	}

	return rec
}

// Previous returns the last record of a device.
func (s *State) Previous(key string) (Record, bool) {
	rec, ok := s.Devices[key]

	return rec, ok
}

// Remember replaces the last record of a device.
func (s *State) Remember(key string, rec Record) {
	if s.Devices == nil {
		s.Devices = map[string]Record{}
	}

	s.Devices[key] = rec
}
