// Package ioctl builds and splits Linux-style ioctl command identifiers.
package ioctl

import (
	"errors"
	"fmt"
)

// Direction is the data transfer direction of a command, seen from userspace.
type Direction uint32

const (
	// DirNone is used by commands without a payload.
	DirNone Direction = 0

	// DirWrite is used by commands that pass a payload to the driver.
	DirWrite Direction = 1

	// DirRead is used by commands that get a payload back from the driver.
	DirRead Direction = 2

	// DirReadWrite is used by commands that pass a payload in both directions.
	DirReadWrite Direction = 3
)

// Field widths and shifts of the command layout.
const (
	nrBits   = 8
	typeBits = 8
	sizeBits = 14
	dirBits  = 2

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits
)

// ErrFieldOverflow is returned when a command field doesn't fit in its bit range.
var ErrFieldOverflow = errors.New("ioctl field out of range")

// Command is a decoded command identifier.
type Command struct {
	Dir  Direction
	Type uint8
	Nr   uint8
	Size uint16
}

// String returns a short human readable form of the command.
func (c Command) String() string {
	return fmt.Sprintf("%s(%q, %d, %d)", c.Dir, rune(c.Type), c.Nr, c.Size)
}

// String returns the C macro name for the direction.
func (d Direction) String() string {
	switch d {
	case DirNone:
		return "_IO"
	case DirWrite:
		return "_IOW"
	case DirRead:
		return "_IOR"
	case DirReadWrite:
		return "_IOWR"
	}

	return "_IOC?"
}

// Encode packs the fields into a command identifier.
func Encode(dir Direction, typ uint8, nr uint8, size int) (uint32, error) {
	if dir>>dirBits != 0 {
		return 0, fmt.Errorf("direction %d: %w", dir, ErrFieldOverflow)
	}

	if size < 0 || size>>sizeBits != 0 {
		return 0, fmt.Errorf("size %d: %w", size, ErrFieldOverflow)
	}

	return uint32(dir)<<dirShift | uint32(size)<<sizeShift | uint32(typ)<<typeShift | uint32(nr)<<nrShift, nil //nolint:gosec
}

// Decode splits a command identifier back into its fields.
func Decode(cmd uint32) Command {
	return Command{
		Dir:  Direction((cmd >> dirShift) & (1<<dirBits - 1)),
		Type: uint8((cmd >> typeShift) & (1<<typeBits - 1)),
		Nr:   uint8((cmd >> nrShift) & (1<<nrBits - 1)),
		Size: uint16((cmd >> sizeShift) & (1<<sizeBits - 1)),
	}
}

// IO returns the identifier of a command without payload.
func IO(typ uint8, nr uint8) uint32 {
	return mustEncode(DirNone, typ, nr, 0)
}

// IOR returns the identifier of a command reading a payload of the given size.
func IOR(typ uint8, nr uint8, size int) uint32 {
	return mustEncode(DirRead, typ, nr, size)
}

// IOW returns the identifier of a command writing a payload of the given size.
func IOW(typ uint8, nr uint8, size int) uint32 {
	return mustEncode(DirWrite, typ, nr, size)
}

// IOWR returns the identifier of a command exchanging a payload of the given size.
func IOWR(typ uint8, nr uint8, size int) uint32 {
	return mustEncode(DirReadWrite, typ, nr, size)
}

// mustEncode is used for the compile-time command tables where an overflow is a programming error.
func mustEncode(dir Direction, typ uint8, nr uint8, size int) uint32 {
	cmd, err := Encode(dir, typ, nr, size)
	if err != nil {
		panic(err)
	}

	return cmd
}
