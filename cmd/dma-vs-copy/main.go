// Package main is used for the DMA vs memcpy validation tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"golang.org/x/sys/unix"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/config"
	"github.com/nymph-fabric/fabric-bench/internal/logging"
)

var version = "dev"

type cmdGlobal struct {
	flagHelp    bool
	flagVersion bool
	flagDebug   bool
	flagConfig  string

	flagDevice       string
	flagStub         bool
	flagOutput       string
	flagTransfers    int
	flagTransferSize int
	flagRingDepth    uint32
	flagBaselineSize int
	flagThreshold    float64
	flagState        string
	flagHistory      string
	flagSchedule     string
}

func main() {
	// Global flags.
	globalCmd := cmdGlobal{}
	defaults := config.Default()

	app := &cobra.Command{
		Use:   "dma-vs-copy",
		Short: "pcie_nymph DMA vs memcpy validation",
		Long: formatSection("Description",
			`pcie_nymph DMA vs memcpy validation

This tool measures the DMA throughput of the pcie_nymph driver against a local
memory copy, checks the ring hash reported by the driver and writes the result
to a JSON file.

Configuration is read from the optional YAML file, then from .env and the
FABRIC_BENCH_* environment variables, then from the flags below.`),
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE:              globalCmd.run,
	}

	app.PersistentFlags().BoolVarP(&globalCmd.flagHelp, "help", "h", false, "Print help command")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVersion, "version", "v", false, "Print binary version")
	app.PersistentFlags().BoolVar(&globalCmd.flagDebug, "debug", false, "Show debug messages")

	app.Flags().StringVarP(&globalCmd.flagConfig, "config", "c", "", "YAML configuration file")
	app.Flags().StringVarP(&globalCmd.flagDevice, "device", "d", defaults.Device, "Path to the control channel")
	app.Flags().BoolVar(&globalCmd.flagStub, "stub", defaults.Stub, "Use the in-process stub device instead of the driver")
	app.Flags().StringVarP(&globalCmd.flagOutput, "output", "o", defaults.Output, "Path of the JSON result file")
	app.Flags().IntVarP(&globalCmd.flagTransfers, "transfers", "n", defaults.Transfers, "Number of DMA transfers to submit")
	app.Flags().IntVar(&globalCmd.flagTransferSize, "transfer-size", defaults.TransferSize, "Size of each DMA transfer in bytes")
	app.Flags().Uint32Var(&globalCmd.flagRingDepth, "ring-depth", defaults.RingDepth, "Number of ring entries to request")
	app.Flags().IntVar(&globalCmd.flagBaselineSize, "baseline-size", defaults.BaselineSize, "Size of the memcpy buffer in bytes")
	app.Flags().Float64Var(&globalCmd.flagThreshold, "threshold", defaults.Threshold, "Fraction of the memcpy throughput the DMA path must reach")
	app.Flags().StringVar(&globalCmd.flagState, "state", defaults.StatePath, "Path of the run state file (empty to disable)")
	app.Flags().StringVar(&globalCmd.flagHistory, "history", defaults.HistoryPath, "Path of the SQLite run history (empty to disable)")
	app.Flags().StringVar(&globalCmd.flagSchedule, "schedule", defaults.Schedule, "Crontab to re-run the validation periodically")

	// Help handling.
	app.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	// Run the main command and handle errors.
	err := app.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func (c *cmdGlobal) run(cmd *cobra.Command, _ []string) error {
	if c.flagVersion {
		_, _ = fmt.Println("dma-vs-copy version " + version) //nolint:forbidigo

		return nil
	}

	logging.Setup(os.Stderr, c.flagDebug)

	cfg, err := config.Load(c.flagConfig, ".env")
	if err != nil {
		return err
	}

	c.applyFlags(cmd, cfg)

	err = config.Validate(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	v, err := newValidator(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}

	// Also release the history database when a later branch calls atexit.Exit directly.
	atexit.Register(v.close)

	if cfg.Schedule != "" {
		return v.runScheduled(ctx, cfg.Schedule)
	}

	return v.run(ctx)
}

// applyFlags overrides the loaded configuration with the flags set on the command line.
func (c *cmdGlobal) applyFlags(cmd *cobra.Command, cfg *api.Config) {
	flags := cmd.Flags()

	if flags.Changed("device") {
		cfg.Device = c.flagDevice
	}

	if flags.Changed("stub") {
		cfg.Stub = c.flagStub
	}

	if flags.Changed("output") {
		cfg.Output = c.flagOutput
	}

	if flags.Changed("transfers") {
		cfg.Transfers = c.flagTransfers
	}

	if flags.Changed("transfer-size") {
		cfg.TransferSize = c.flagTransferSize
	}

	if flags.Changed("ring-depth") {
		cfg.RingDepth = c.flagRingDepth
	}

	if flags.Changed("baseline-size") {
		cfg.BaselineSize = c.flagBaselineSize
	}

	if flags.Changed("threshold") {
		cfg.Threshold = c.flagThreshold
	}

	if flags.Changed("state") {
		cfg.StatePath = c.flagState
	}

	if flags.Changed("history") {
		cfg.HistoryPath = c.flagHistory
	}

	if flags.Changed("schedule") {
		cfg.Schedule = c.flagSchedule
	}
}
