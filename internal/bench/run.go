package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/config"
	"github.com/nymph-fabric/fabric-bench/internal/device"
	"github.com/nymph-fabric/fabric-bench/internal/fabric"
)

// ErrDevicePathFailed is returned when the device path couldn't produce a positive throughput.
var ErrDevicePathFailed = errors.New("device path measurement failed")

// State is a step of the run state machine.
type State string

// Run states, in order.
const (
	StateClosed         State = "closed"
	StateOpened         State = "opened"
	StateRingConfigured State = "ring-configured"
	StateSubmitting     State = "submitting"
	StateStatusQueried  State = "status-queried"
	StateEvaluated      State = "evaluated"
)

// Harness runs one validation against a control channel.
type Harness struct {
	Config *api.Config
	Opener device.Opener

	// Now is the clock used for every measurement, time.Now if nil.
	Now func() time.Time
}

// Outcome is everything a run measured, in the order it was measured.
type Outcome struct {
	RunID  string
	Config api.Config

	Baseline     BaselineResult
	Ring         *fabric.Ring
	RingEcho     *fabric.Ring
	Submit       SubmitResult
	Verification *Verification
	Evaluation   Evaluation

	// HashCheck is filled in by callers comparing against a previous run.
	HashCheck string

	States []State
	Err    error
}

// State returns the last state the run reached.
func (o *Outcome) State() State {
	if len(o.States) == 0 {
		return StateClosed
	}

	return o.States[len(o.States)-1]
}

// Reached reports whether the run went through the given state.
func (o *Outcome) Reached(s State) bool {
	for _, st := range o.States {
		if st == s {
			return true
		}
	}

	return false
}

// Result returns the record persisted for the run.
func (o *Outcome) Result() api.Result {
	res := api.Result{
		MemcpyThroughputMBps: o.Baseline.ThroughputMBps,
		Status:               api.StatusFail,
	}

	if o.Verification == nil {
		return res
	}

	res.DMAThroughputMBps = o.Verification.ThroughputMBps
	res.DMABytes = o.Verification.Bytes
	res.Status = o.Evaluation.Status

	if o.Verification.RingHash != "" {
		hash := o.Verification.RingHash
		res.RingHash = &hash
	}

	return res
}

func (o *Outcome) enter(s State) {
	o.States = append(o.States, s)
}

// Run opens the control channel, measures both paths and evaluates them. The channel is
// released before Run returns, whatever happened. The returned Outcome is never nil.
func (h *Harness) Run(ctx context.Context) (*Outcome, error) {
	o := &Outcome{
		RunID: xid.New().String(),
	}

	if h.Config != nil {
		o.Config = *h.Config
	}

	o.enter(StateClosed)

	err := config.ValidateRun(&o.Config)
	if err != nil {
		o.Err = err

		return o, err
	}

	cfg := &o.Config

	sess, err := device.Open(ctx, cfg.Device, h.Opener)
	if err != nil {
		o.Err = err

		return o, err
	}

	o.enter(StateOpened)

	defer func() {
		err := sess.Close()
		if err != nil {
			slog.WarnContext(ctx, "Failed to close control channel", "path", sess.Path(), "err", err)
		}

		o.enter(StateClosed)
	}()

	// The baseline doesn't depend on the device, measure it before anything can go wrong there.
	o.Baseline = Baseline(cfg.BaselineSize, h.Now)
	slog.InfoContext(ctx, "Measured memcpy baseline", "bytes", o.Baseline.Bytes, "elapsed", o.Baseline.Elapsed, "mbps", fmt.Sprintf("%.2f", o.Baseline.ThroughputMBps))

	err = h.configureRing(ctx, sess, o)
	if err != nil {
		o.Evaluation = Evaluate(o.Baseline.ThroughputMBps, 0, false, cfg.Threshold)
		o.Err = fmt.Errorf("%w: %w", ErrDevicePathFailed, err)

		return o, o.Err
	}

	o.enter(StateRingConfigured)

	o.enter(StateSubmitting)
	o.Submit = SubmitAll(ctx, sess, cfg.Transfers, uint32(cfg.TransferSize), h.Now) //nolint:gosec
	slog.InfoContext(ctx, "Submitted DMA transfers", "attempted", o.Submit.Attempted, "failed", o.Submit.Failed, "elapsed", o.Submit.Elapsed)

	v := Verify(ctx, sess, cfg.RequestedBytes(), o.Submit)
	o.Verification = &v
	o.enter(StateStatusQueried)

	o.Evaluation = Evaluate(o.Baseline.ThroughputMBps, v.ThroughputMBps, v.RingHash != "", cfg.Threshold)
	o.enter(StateEvaluated)

	if o.Evaluation.Status != api.StatusPass {
		o.Err = fmt.Errorf("%w: device throughput is %.2f MB/s", ErrDevicePathFailed, v.ThroughputMBps)

		return o, o.Err
	}

	return o, nil
}

// configureRing resets the driver and sets up the ring. Only the setup is required to succeed.
func (h *Harness) configureRing(ctx context.Context, sess *device.Session, o *Outcome) error {
	err := sess.Reset(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Ignoring reset failure", "err", err)
	}

	ring, err := sess.SetupRing(ctx, o.Config.RingDepth)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to setup ring", "depth", o.Config.RingDepth, "err", err)

		return err
	}

	o.Ring = &ring

	echo, err := sess.GetRing(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read back ring configuration", "err", err)

		return nil
	}

	o.RingEcho = echo

	if echo.RingSize != ring.RingSize {
		slog.WarnContext(ctx, "Driver reports a different ring size", "requested", ring.RingSize, "reported", echo.RingSize)
	}

	return nil
}
