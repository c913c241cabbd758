// Package fabric defines the pcie_nymph control channel protocol: the fixed-layout
// structures exchanged with the driver and the command identifiers used to exchange them.
package fabric

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// Wire sizes of the protocol structures.
const (
	DescriptorSize = 32
	RingSize       = 24
	StatusSize     = 48

	// HashSize is the size of the ring integrity hash in bytes.
	HashSize = 32
)

// Descriptor flags understood by the driver. The harness always submits with no flags set.
const (
	FlagZeroCopy     uint32 = 1 << 0
	FlagVerifyHash   uint32 = 1 << 1
	FlagCompleteSync uint32 = 1 << 2
)

// ErrShortBuffer is returned when decoding a buffer that doesn't match the structure size.
var ErrShortBuffer = errors.New("buffer size doesn't match structure size")

// Descriptor is a single requested memory transfer (struct nymph_dma_desc).
type Descriptor struct {
	SrcAddr uint64
	DstAddr uint64
	Length  uint32
	Flags   uint32
	Cookie  uint64
}

// Ring describes the transfer queue (struct nymph_dma_ring).
type Ring struct {
	RingSize uint32
	Head     uint32
	Tail     uint32
	Reserved uint32
	RingAddr uint64
}

// Status is a point-in-time snapshot of the fabric (struct nymph_fabric_status).
type Status struct {
	DMABytes          uint64
	RingHash          [HashSize]byte
	RingSize          uint32
	ActiveDescriptors uint32
}

// HashHex renders the ring hash as lowercase hexadecimal, first byte first.
func (s *Status) HashHex() string {
	return hex.EncodeToString(s.RingHash[:])
}

// MarshalBinary encodes the descriptor in its little-endian wire layout.
func (d *Descriptor) MarshalBinary() ([]byte, error) {
	return encode(d, DescriptorSize)
}

// UnmarshalBinary decodes the descriptor from its little-endian wire layout.
func (d *Descriptor) UnmarshalBinary(data []byte) error {
	return decode(data, d, DescriptorSize)
}

// MarshalBinary encodes the ring configuration in its little-endian wire layout.
func (r *Ring) MarshalBinary() ([]byte, error) {
	return encode(r, RingSize)
}

// UnmarshalBinary decodes the ring configuration from its little-endian wire layout.
func (r *Ring) UnmarshalBinary(data []byte) error {
	return decode(data, r, RingSize)
}

// MarshalBinary encodes the status in its little-endian wire layout.
func (s *Status) MarshalBinary() ([]byte, error) {
	return encode(s, StatusSize)
}

// UnmarshalBinary decodes the status from its little-endian wire layout.
func (s *Status) UnmarshalBinary(data []byte) error {
	return decode(data, s, StatusSize)
}

// encode writes the fixed-size struct field by field, so the result never depends on Go's memory layout.
func encode(v any, size int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, size))

	err := binary.Write(buf, binary.LittleEndian, v)
	if err != nil {
		return nil, err
	}

	if buf.Len() != size {
		return nil, fmt.Errorf("encoded %T is %d bytes, expected %d", v, buf.Len(), size)
	}

	return buf.Bytes(), nil
}

func decode(data []byte, v any, size int) error {
	if len(data) != size {
		return fmt.Errorf("decoding %T from %d bytes: %w", v, len(data), ErrShortBuffer)
	}

	return binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
}
