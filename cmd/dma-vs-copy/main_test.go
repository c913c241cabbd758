package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/bench"
	"github.com/nymph-fabric/fabric-bench/internal/config"
	"github.com/nymph-fabric/fabric-bench/internal/device"
	"github.com/nymph-fabric/fabric-bench/internal/history"
	"github.com/nymph-fabric/fabric-bench/internal/report"
	"github.com/nymph-fabric/fabric-bench/internal/state"
	"github.com/nymph-fabric/fabric-bench/internal/stubdev"
)

func stubConfig(t *testing.T) *api.Config {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Stub = true
	cfg.BaselineSize = 1024 * 1024
	cfg.Output = filepath.Join(dir, "dist", "dma_vs_copy.json")
	cfg.StatePath = filepath.Join(dir, "dist", "dma_vs_copy.state")
	cfg.HistoryPath = filepath.Join(dir, "dist", "history.sqlite3")

	return cfg
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	c := &cmdGlobal{}
	cmd := &cobra.Command{}
	cmd.Flags().StringVarP(&c.flagDevice, "device", "d", "", "")
	cmd.Flags().IntVarP(&c.flagTransfers, "transfers", "n", 0, "")
	cmd.Flags().Uint32Var(&c.flagRingDepth, "ring-depth", 0, "")
	cmd.Flags().BoolVar(&c.flagStub, "stub", false, "")

	err := cmd.Flags().Parse([]string{"-d", "/dev/nymph1", "--ring-depth", "64"})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Transfers = 42

	c.applyFlags(cmd, cfg)
	require.Equal(t, "/dev/nymph1", cfg.Device)
	require.Equal(t, uint32(64), cfg.RingDepth)

	// Flags left alone don't override the configuration.
	require.Equal(t, 42, cfg.Transfers)
	require.False(t, cfg.Stub)
}

func TestFormatSection(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Description:\n  a\n\n  b\n\n", formatSection("Description", "a\n\nb"))
	require.Equal(t, "  a\n  b", formatSection("", "a\nb"))
}

func TestValidatorRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := stubConfig(t)
	out := &bytes.Buffer{}

	v, err := newValidator(ctx, cfg, out)
	require.NoError(t, err)

	t.Cleanup(v.close)

	err = v.run(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Results saved to: "+cfg.Output)

	res, err := report.ReadJSON(cfg.Output)
	require.NoError(t, err)
	require.Equal(t, api.StatusPass, res.Status)
	require.Equal(t, uint64(6553600), res.DMABytes)
	require.Equal(t, strings.Repeat("aa", 32), *res.RingHash)

	// The second run is compared against the first one.
	out.Reset()

	err = v.run(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Hash check:        consistent with run")

	s, err := state.LoadOrCreate(cfg.StatePath)
	require.NoError(t, err)

	_, ok := s.Previous(state.DeviceKey(cfg.Device, true))
	require.True(t, ok)

	runs, err := v.history.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestValidatorRingSetupFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := stubConfig(t)
	cfg.HistoryPath = ""
	out := &bytes.Buffer{}

	v, err := newValidator(ctx, cfg, out)
	require.NoError(t, err)

	dev := stubdev.New()
	dev.Faults.Setup = unix.EINVAL
	v.opener = dev

	err = v.run(ctx)
	require.ErrorIs(t, err, bench.ErrDevicePathFailed)
	require.Equal(t, 1, dev.Closes())

	// A failed result still replaces any previous one.
	res, err := report.ReadJSON(cfg.Output)
	require.NoError(t, err)
	require.Equal(t, api.StatusFail, res.Status)
	require.Nil(t, res.RingHash)
	require.Zero(t, res.DMABytes)
}

func TestValidatorOpenFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := stubConfig(t)
	cfg.HistoryPath = ""
	cfg.StatePath = ""
	out := &bytes.Buffer{}

	v, err := newValidator(ctx, cfg, out)
	require.NoError(t, err)

	dev := stubdev.New()
	dev.Faults.Open = unix.ENOENT
	v.opener = dev

	err = v.run(ctx)
	require.ErrorIs(t, err, device.ErrDeviceNotFound)
	require.Contains(t, out.String(), "Is the pcie_nymph driver loaded?")
	require.NoFileExists(t, cfg.Output)
}

func TestValidatorPermissionDenied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := stubConfig(t)
	cfg.HistoryPath = ""
	cfg.StatePath = ""
	out := &bytes.Buffer{}

	v, err := newValidator(ctx, cfg, out)
	require.NoError(t, err)

	dev := stubdev.New()
	dev.Faults.Open = unix.EACCES
	v.opener = dev

	err = v.run(ctx)
	require.ErrorIs(t, err, device.ErrPermissionDenied)
	require.Contains(t, out.String(), "Permission denied. Run with sudo.")
	require.NotContains(t, out.String(), "driver loaded")
	require.NoFileExists(t, cfg.Output)
}

func TestValidatorHistoryPersisted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := stubConfig(t)

	v, err := newValidator(ctx, cfg, &bytes.Buffer{})
	require.NoError(t, err)

	err = v.run(ctx)
	require.NoError(t, err)

	v.close()
	require.Nil(t, v.history)

	rec, err := history.Open(ctx, cfg.HistoryPath)
	require.NoError(t, err)

	t.Cleanup(func() { _ = rec.Close() })

	runs, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.True(t, runs[0].Config.Stub)
}
