package device

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Channel is an open control channel to the driver.
type Channel interface {
	// Ioctl issues one control request. The argument buffer holds the encoded
	// structure for the command and is updated in place for read commands. A nil
	// or empty buffer is passed as a zero argument.
	Ioctl(cmd uint32, arg []byte) error

	// Close releases the channel.
	Close() error
}

// Opener acquires a control channel for a given endpoint path.
type Opener interface {
	Open(path string) (Channel, error)
}

// UnixOpener opens character devices through open(2) and drives them with ioctl(2).
type UnixOpener struct{}

// Open opens the device node read-write.
func (UnixOpener) Open(path string) (Channel, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	return &unixChannel{fd: fd, path: path}, nil
}

type unixChannel struct {
	fd   int
	path string
}

func (c *unixChannel) Ioctl(cmd uint32, arg []byte) error {
	var errno unix.Errno

	// The pointer conversion has to stay inside the Syscall expression to keep the buffer pinned.
	if len(arg) > 0 {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), uintptr(cmd), uintptr(unsafe.Pointer(&arg[0])))
	} else {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), uintptr(cmd), 0)
	}

	if errno != 0 {
		return fmt.Errorf("ioctl 0x%08X on %s: %w", cmd, c.path, errno)
	}

	return nil
}

func (c *unixChannel) Close() error {
	return unix.Close(c.fd)
}
