package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/config"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))

	require.Equal(t, "/dev/pcie_nymph", cfg.Device)
	require.Equal(t, 100, cfg.Transfers)
	require.Equal(t, 65536, cfg.TransferSize)
	require.Equal(t, uint32(256), cfg.RingDepth)
	require.Equal(t, 10*1024*1024, cfg.BaselineSize)
	require.InDelta(t, 0.10, cfg.Threshold, 1e-9)
	require.Equal(t, uint64(6553600), cfg.RequestedBytes())
}

func TestYAMLAndDotenv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bench.yaml")
	err := os.WriteFile(yamlPath, []byte("transfers: 10\ntransfer_size: 4096\nring_depth: 64\nstub: true\n"), 0o600)
	require.NoError(t, err)

	envPath := filepath.Join(dir, ".env")
	err = os.WriteFile(envPath, []byte("FABRIC_BENCH_TRANSFERS=20\nFABRIC_BENCH_THRESHOLD=0.5\n"), 0o600)
	require.NoError(t, err)

	cfg, err := config.Load(yamlPath, envPath, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	// The dotenv file overrides the YAML file, which overrides the defaults.
	require.Equal(t, 20, cfg.Transfers)
	require.Equal(t, 4096, cfg.TransferSize)
	require.Equal(t, uint32(64), cfg.RingDepth)
	require.True(t, cfg.Stub)
	require.InDelta(t, 0.5, cfg.Threshold, 1e-9)
	require.Equal(t, "/dev/pcie_nymph", cfg.Device)
}

func TestBadInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	envPath := filepath.Join(dir, ".env")
	err := os.WriteFile(envPath, []byte("FABRIC_BENCH_RING_DEPTH=lots\n"), 0o600)
	require.NoError(t, err)

	_, err = config.Load("", envPath)
	require.Error(t, err)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		modify func(*api.Config)
		valid  bool
	}{
		{name: "Defaults", modify: func(*api.Config) {}, valid: true},
		{name: "No device", modify: func(c *api.Config) { c.Device = "" }, valid: false},
		{name: "No device in stub mode", modify: func(c *api.Config) { c.Device = ""; c.Stub = true }, valid: true},
		{name: "Zero transfers", modify: func(c *api.Config) { c.Transfers = 0 }, valid: false},
		{name: "Transfers over 32 bits", modify: func(c *api.Config) { c.Transfers = 1 << 32 }, valid: false},
		{name: "Largest transfer", modify: func(c *api.Config) { c.Transfers = 1<<32 - 1; c.TransferSize = 1<<32 - 1 }, valid: true},
		{name: "Zero transfer size", modify: func(c *api.Config) { c.TransferSize = 0 }, valid: false},
		{name: "Transfer size over 32 bits", modify: func(c *api.Config) { c.TransferSize = 1 << 32 }, valid: false},
		{name: "Zero ring depth", modify: func(c *api.Config) { c.RingDepth = 0 }, valid: false},
		{name: "Zero baseline", modify: func(c *api.Config) { c.BaselineSize = 0 }, valid: false},
		{name: "Negative threshold", modify: func(c *api.Config) { c.Threshold = -1 }, valid: false},
		{name: "Zero threshold", modify: func(c *api.Config) { c.Threshold = 0 }, valid: true},
		{name: "No output", modify: func(c *api.Config) { c.Output = "" }, valid: false},
		{name: "Hourly schedule", modify: func(c *api.Config) { c.Schedule = "0 * * * *" }, valid: true},
		{name: "Bad schedule", modify: func(c *api.Config) { c.Schedule = "hourly" }, valid: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tc.modify(cfg)

			err := config.Validate(cfg)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, config.ErrInvalidConfig)
			}
		})
	}
}

func TestValidateRun(t *testing.T) {
	t.Parallel()

	// A measurement doesn't write results or schedule itself.
	cfg := config.Default()
	cfg.Output = ""
	cfg.Schedule = "hourly"

	require.NoError(t, config.ValidateRun(cfg))
	require.ErrorIs(t, config.Validate(cfg), config.ErrInvalidConfig)

	cfg.Transfers = 1 << 32
	require.ErrorIs(t, config.ValidateRun(cfg), config.ErrInvalidConfig)
}

func TestRequestedBytesBound(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Transfers = 1<<32 - 1
	cfg.TransferSize = 1<<32 - 1

	require.NoError(t, config.Validate(cfg))
	require.Equal(t, uint64(1<<32-1)*uint64(1<<32-1), cfg.RequestedBytes())
}
