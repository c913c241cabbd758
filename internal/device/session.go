// Package device manages a session on the pcie_nymph control channel.
package device

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/nymph-fabric/fabric-bench/internal/fabric"
)

// DefaultPath is the control channel created by the pcie_nymph driver.
const DefaultPath = "/dev/pcie_nymph"

// StubRingAddress is the ring base address handed to the driver in stub mode.
const StubRingAddress uint64 = 0x1000000

// Session holds exclusive access to an open control channel.
type Session struct {
	path   string
	ch     Channel
	closed bool
}

// Open acquires the control channel at path through the given opener.
func Open(ctx context.Context, path string, opener Opener) (*Session, error) {
	if opener == nil {
		opener = UnixOpener{}
	}

	ch, err := opener.Open(path)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}

	slog.DebugContext(ctx, "Control channel opened", "path", path)

	return &Session{path: path, ch: ch}, nil
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, path, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}
}

// Path returns the control channel path.
func (s *Session) Path() string {
	return s.path
}

// Close releases the control channel. Only the first call reaches the driver.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	return s.ch.Close()
}

// Reset clears the driver's counters and ring state.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(ctx, fabric.CmdReset, nil)
}

// SetupRing configures the transfer ring with the requested depth and returns the
// configuration that was sent.
func (s *Session) SetupRing(ctx context.Context, depth uint32) (fabric.Ring, error) {
	ring := fabric.Ring{
		RingSize: depth,
		RingAddr: StubRingAddress,
	}

	buf, err := ring.MarshalBinary()
	if err != nil {
		return ring, err
	}

	err = s.do(ctx, fabric.CmdSetupRing, buf)
	if err != nil {
		return ring, fmt.Errorf("%w: %w", ErrRingSetupFailed, err)
	}

	return ring, nil
}

// GetRing reads back the current ring configuration.
func (s *Session) GetRing(ctx context.Context) (*fabric.Ring, error) {
	buf := make([]byte, fabric.RingSize)

	err := s.do(ctx, fabric.CmdGetRing, buf)
	if err != nil {
		return nil, err
	}

	var ring fabric.Ring

	err = ring.UnmarshalBinary(buf)
	if err != nil {
		return nil, err
	}

	return &ring, nil
}

// Submit issues one transfer descriptor.
func (s *Session) Submit(ctx context.Context, desc fabric.Descriptor) error {
	buf, err := desc.MarshalBinary()
	if err != nil {
		return err
	}

	return s.do(ctx, fabric.CmdSubmitDMA, buf)
}

// Status fetches the current fabric status.
func (s *Session) Status(ctx context.Context) (*fabric.Status, error) {
	buf := make([]byte, fabric.StatusSize)

	err := s.do(ctx, fabric.CmdGetStatus, buf)
	if err != nil {
		return nil, err
	}

	var status fabric.Status

	err = status.UnmarshalBinary(buf)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

func (s *Session) do(ctx context.Context, cmd uint32, arg []byte) error {
	if s.closed {
		return ErrClosed
	}

	err := s.ch.Ioctl(cmd, arg)
	if err != nil {
		slog.DebugContext(ctx, "Control request failed", "cmd", fabric.CommandName(cmd), "err", err)

		return fmt.Errorf("%s: %w", fabric.CommandName(cmd), err)
	}

	return nil
}
