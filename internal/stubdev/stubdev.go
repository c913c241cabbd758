// Package stubdev provides an in-process pcie_nymph control channel that mirrors the
// behavior of the driver's stub mode. It's used by the tests and by the --stub flag.
package stubdev

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nymph-fabric/fabric-bench/internal/device"
	"github.com/nymph-fabric/fabric-bench/internal/fabric"
	"github.com/nymph-fabric/fabric-bench/internal/ioctl"
)

// StubHashByte is the value every ring hash byte holds in stub mode.
const StubHashByte = 0xAA

// Faults lets a caller make individual operations fail.
type Faults struct {
	Open   error
	Reset  error
	Setup  error
	Status error

	// Submit is called with the zero-based index of each submission since the
	// device was created; a non-nil return fails that submission.
	Submit func(index int) error
}

// Device is a stub pcie_nymph device. It implements device.Opener.
type Device struct {
	Faults Faults

	mu              sync.Mutex
	ring            fabric.Ring
	status          fabric.Status
	ringInitialized bool

	submissions int
	opens       int
	closes      int
}

// New returns a freshly reset stub device.
func New() *Device {
	return &Device{}
}

// Open hands out a new channel on the device.
func (d *Device) Open(path string) (device.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Faults.Open != nil {
		return nil, d.Faults.Open
	}

	d.opens++

	return &channel{dev: d, path: path}, nil
}

// Opens returns how many channels were handed out.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opens
}

// Closes returns how many channels were released.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closes
}

// Submissions returns how many submit requests were received, successful or not.
func (d *Device) Submissions() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.submissions
}

type channel struct {
	dev    *Device
	path   string
	closed bool
}

func (c *channel) Close() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()

	if c.closed {
		return unix.EBADF
	}

	c.closed = true
	c.dev.closes++

	return nil
}

func (c *channel) Ioctl(cmd uint32, arg []byte) error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()

	if c.closed {
		return unix.EBADF
	}

	// Mirror copy_from_user/copy_to_user: the buffer must hold exactly the encoded structure.
	decoded := ioctl.Decode(cmd)
	if decoded.Dir != ioctl.DirNone && len(arg) != int(decoded.Size) {
		return unix.EFAULT
	}

	switch cmd {
	case fabric.CmdSubmitDMA:
		return c.dev.submit(arg)
	case fabric.CmdGetStatus:
		return c.dev.getStatus(arg)
	case fabric.CmdSetupRing:
		return c.dev.setupRing(arg)
	case fabric.CmdGetRing:
		return c.dev.getRing(arg)
	case fabric.CmdReset:
		return c.dev.reset()
	}

	return fmt.Errorf("%s: %w", decoded, unix.ENOTTY)
}

func (d *Device) submit(arg []byte) error {
	index := d.submissions
	d.submissions++

	if d.Faults.Submit != nil {
		err := d.Faults.Submit(index)
		if err != nil {
			return err
		}
	}

	var desc fabric.Descriptor

	err := desc.UnmarshalBinary(arg)
	if err != nil {
		return unix.EFAULT
	}

	if !d.ringInitialized {
		return unix.EINVAL
	}

	d.status.DMABytes += uint64(desc.Length)

	return nil
}

func (d *Device) getStatus(arg []byte) error {
	if d.Faults.Status != nil {
		return d.Faults.Status
	}

	status := d.status
	for i := range status.RingHash {
		status.RingHash[i] = StubHashByte
	}

	buf, err := status.MarshalBinary()
	if err != nil {
		return err
	}

	copy(arg, buf)

	return nil
}

func (d *Device) setupRing(arg []byte) error {
	if d.Faults.Setup != nil {
		return d.Faults.Setup
	}

	var ring fabric.Ring

	err := ring.UnmarshalBinary(arg)
	if err != nil {
		return unix.EFAULT
	}

	d.ring = ring
	d.ringInitialized = true
	d.status.RingSize = ring.RingSize

	return nil
}

func (d *Device) getRing(arg []byte) error {
	if !d.ringInitialized {
		return unix.EINVAL
	}

	buf, err := d.ring.MarshalBinary()
	if err != nil {
		return err
	}

	copy(arg, buf)

	return nil
}

func (d *Device) reset() error {
	if d.Faults.Reset != nil {
		return d.Faults.Reset
	}

	d.status = fabric.Status{}
	d.ringInitialized = false

	return nil
}
