package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lxc/incus/v6/shared/revert"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/bench"
	"github.com/nymph-fabric/fabric-bench/internal/device"
	"github.com/nymph-fabric/fabric-bench/internal/history"
	"github.com/nymph-fabric/fabric-bench/internal/host"
	"github.com/nymph-fabric/fabric-bench/internal/report"
	"github.com/nymph-fabric/fabric-bench/internal/scheduling"
	"github.com/nymph-fabric/fabric-bench/internal/state"
	"github.com/nymph-fabric/fabric-bench/internal/stubdev"
)

// validator runs validations with everything that outlives a single run.
type validator struct {
	cfg    *api.Config
	opener device.Opener
	out    io.Writer
	now    func() time.Time

	state   *state.State
	history *history.Recorder
}

func newValidator(ctx context.Context, cfg *api.Config, out io.Writer) (*validator, error) {
	v := &validator{
		cfg:    cfg,
		opener: device.UnixOpener{},
		out:    out,
		now:    time.Now,
	}

	if cfg.Stub {
		slog.InfoContext(ctx, "Using the in-process stub device", "path", cfg.Device)

		v.opener = stubdev.New()
	}

	reverter := revert.New()
	defer reverter.Fail()

	if cfg.HistoryPath != "" {
		rec, err := history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("opening run history: %w", err)
		}

		v.history = rec

		reverter.Add(v.close)
	}

	if cfg.StatePath != "" {
		s, err := state.LoadOrCreate(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("loading run state: %w", err)
		}

		v.state = s
	}

	reverter.Success()

	return v, nil
}

// run performs one validation, reports it and persists it.
func (v *validator) run(ctx context.Context) error {
	info := host.Get(ctx)

	h := &bench.Harness{Config: v.cfg, Opener: v.opener}

	out, runErr := h.Run(ctx)
	if runErr != nil && !out.Reached(bench.StateOpened) {
		// Nothing was measured, only explain why.
		if errors.Is(runErr, device.ErrDeviceNotFound) {
			if host.ModuleLoaded() {
				slog.ErrorContext(ctx, "Driver is loaded but the control channel is missing", "path", v.cfg.Device, "module", host.DriverModule)
			} else {
				slog.ErrorContext(ctx, "Driver isn't loaded", "module", host.DriverModule)
			}
		}

		err := report.Print(v.out, out, &info)
		if err != nil {
			return err
		}

		return runErr
	}

	res := out.Result()
	key := state.DeviceKey(v.cfg.Device, v.cfg.Stub)
	rec := state.NewRecord(out.RunID, out.Config, res, v.now())

	if v.state != nil {
		prev, ok := v.state.Previous(key)
		if ok {
			cmp := state.Compare(prev, rec)
			out.HashCheck = cmp.String()

			if cmp.Check == state.HashChanged {
				slog.WarnContext(ctx, "Ring hash differs from the previous run", "previous", prev.RunID, "run", out.RunID)
			}
		}
	}

	err := report.Print(v.out, out, &info)
	if err != nil {
		return err
	}

	err = report.WriteJSON(v.cfg.Output, res)
	if err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	_, _ = fmt.Fprintf(v.out, "\nResults saved to: %s\n", v.cfg.Output)

	v.persist(ctx, key, rec, out)

	return runErr
}

// persist records a run in the state file and the history. Failures are only logged.
func (v *validator) persist(ctx context.Context, key string, rec state.Record, out *bench.Outcome) {
	// A run without a hash would hide the last comparable one.
	if v.state != nil && rec.RingHash != "" {
		v.state.Remember(key, rec)

		err := v.state.Save()
		if err != nil {
			slog.WarnContext(ctx, "Failed to save run state", "path", v.cfg.StatePath, "err", err)
		}
	}

	if v.history != nil {
		err := v.history.Record(ctx, history.Run{
			RunID:             out.RunID,
			Finished:          v.now(),
			Config:            out.Config,
			FailedSubmissions: out.Submit.Failed,
			Result:            out.Result(),
		})
		if err != nil {
			slog.WarnContext(ctx, "Failed to record run history", "path", v.cfg.HistoryPath, "err", err)
		}
	}
}

// runScheduled runs a validation now and then on every crontab match until ctx is cancelled.
func (v *validator) runScheduled(ctx context.Context, crontab string) error {
	scheduler, err := scheduling.NewScheduler()
	if err != nil {
		return err
	}

	err = scheduler.RegisterJob(scheduling.ValidationJob, crontab, v.run)
	if err != nil {
		return err
	}

	scheduler.Start()

	err = scheduler.RunNow(scheduling.ValidationJob)
	if err != nil {
		_ = scheduler.Shutdown()

		return err
	}

	slog.InfoContext(ctx, "Validation scheduled", "schedule", crontab)

	<-ctx.Done()

	slog.InfoContext(ctx, "Stopping scheduled validation")

	return scheduler.Shutdown()
}

func (v *validator) close() {
	if v.history == nil {
		return
	}

	err := v.history.Close()
	if err != nil {
		slog.Warn("Failed to close run history", "err", err)
	}

	v.history = nil
}
