package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math/bits"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	// ChecksumPolynomial is the CRC32 generator polynomial, in MSB-first (non-reflected) form.
	ChecksumPolynomial uint32 = 0x04C11DB7
	// ChecksumInitial is the default initial register value.
	ChecksumInitial uint32 = 0xFFFFFFFF
	// TrailerSize is the size of the checksum at the end of every block.
	TrailerSize = 4
)

// CRC algorithms a ChecksumVariant can select.
const (
	// AlgorithmBE is the MSB-first CRC32 (Linux crc32_be, CRC-32/MPEG-2 with the default initial).
	AlgorithmBE = "be"
	// AlgorithmLE is the reflected CRC32 (Linux crc32_le) without the implicit inversions.
	AlgorithmLE = "le"
)

// Byte orders the trailer can be read in.
const (
	TrailerNative = "native"
	TrailerLittle = "little"
	TrailerBig    = "big"
)

var beTable = makeBETable(ChecksumPolynomial)

func makeBETable(poly uint32) *[256]uint32 {
	t := new([256]uint32)
	for i := range t {
		crc := uint32(i) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// UpdateBE returns the result of feeding p into an MSB-first CRC32 register holding crc. No
// inversion is applied on the way in or out.
func UpdateBE(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crc<<8 ^ beTable[byte(crc>>24)^b]
	}
	return crc
}

// UpdateLE returns the result of feeding p into a reflected CRC32 register holding crc. No
// inversion is applied on the way in or out.
func UpdateLE(crc uint32, p []byte) uint32 {
	return ^crc32.Update(^crc, crc32.IEEETable, p)
}

// ChecksumVariant selects the CRC32 convention the peer signs blocks with. The zero value is the
// default convention: big-endian, all-ones initial, no final inversion, trailer in host order.
type ChecksumVariant struct {
	Algorithm    string  `json:"algorithm,omitempty"`
	Initial      *uint32 `json:"initial,omitempty"`
	FinalXOR     bool    `json:"final_xor,omitempty"`
	TrailerOrder string  `json:"trailer_order,omitempty"`
}

// Validate ensures all parts of the variant are valid.
func (v *ChecksumVariant) Validate(path string) error {
	switch v.Algorithm {
	case "", AlgorithmBE, AlgorithmLE:
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("unknown checksum algorithm %q, expected %q or %q", v.Algorithm, AlgorithmBE, AlgorithmLE))
	}
	if _, err := byteOrder(v.TrailerOrder); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

func (v ChecksumVariant) algorithm() string {
	if v.Algorithm == "" {
		return AlgorithmBE
	}
	return v.Algorithm
}

func (v ChecksumVariant) initial() uint32 {
	if v.Initial == nil {
		return ChecksumInitial
	}
	return *v.Initial
}

func (v ChecksumVariant) order() binary.ByteOrder {
	order, err := byteOrder(v.TrailerOrder)
	if err != nil {
		return binary.NativeEndian
	}
	return order
}

func byteOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case "", TrailerNative:
		return binary.NativeEndian, nil
	case TrailerLittle:
		return binary.LittleEndian, nil
	case TrailerBig:
		return binary.BigEndian, nil
	default:
		return nil, errors.Errorf("unknown trailer_order %q", name)
	}
}

// Sum computes the checksum of payload.
func (v ChecksumVariant) Sum(payload []byte) uint32 {
	var crc uint32
	if v.algorithm() == AlgorithmLE {
		crc = UpdateLE(v.initial(), payload)
	} else {
		crc = UpdateBE(v.initial(), payload)
	}
	if v.FinalXOR {
		crc = ^crc
	}
	return crc
}

// Trailer returns the checksum stored in the last TrailerSize bytes of block.
func (v ChecksumVariant) Trailer(block []byte) (uint32, error) {
	if len(block) < TrailerSize {
		return 0, errors.Errorf("block of %d bytes is too short to hold a checksum", len(block))
	}
	return v.order().Uint32(block[len(block)-TrailerSize:]), nil
}

// Sign writes the checksum of the payload part of block into its trailer.
func (v ChecksumVariant) Sign(block []byte) error {
	if len(block) < TrailerSize {
		return errors.Errorf("block of %d bytes is too short to hold a checksum", len(block))
	}
	payload := block[:len(block)-TrailerSize]
	v.order().PutUint32(block[len(payload):], v.Sum(payload))
	return nil
}

func (v ChecksumVariant) String() string {
	order := v.TrailerOrder
	if order == "" {
		order = TrailerNative
	}
	return fmt.Sprintf("crc32_%s(init=0x%08x, final_xor=%t, trailer=%s)", v.algorithm(), v.initial(), v.FinalXOR, order)
}

// ChecksumMismatchError is returned when a block's trailer does not match its payload. Expected is
// the checksum computed over the payload; Received is the one found in the trailer.
type ChecksumMismatchError struct {
	Expected uint32
	Received uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: got 0x%08x, expected 0x%08x", e.Received, e.Expected)
}

// A Validator checks blocks against their trailing checksum.
type Validator struct {
	variant ChecksumVariant
}

// NewValidator returns a Validator for the given convention.
func NewValidator(variant ChecksumVariant) *Validator {
	return &Validator{variant: variant}
}

// Variant returns the convention the validator checks with.
func (val *Validator) Variant() ChecksumVariant {
	return val.variant
}

// Validate returns the payload of block, which is everything but the trailer, if the trailer
// matches the payload's checksum. The returned slice aliases block.
func (val *Validator) Validate(block []byte) ([]byte, error) {
	received, err := val.variant.Trailer(block)
	if err != nil {
		return nil, err
	}
	payload := block[:len(block)-TrailerSize]
	if expected := val.variant.Sum(payload); expected != received {
		return nil, &ChecksumMismatchError{Expected: expected, Received: received}
	}
	return payload, nil
}

// VariantSum is one CRC32 convention computed over a payload.
type VariantSum struct {
	Name string
	Sum  uint32
	// Inverted is Sum with a final complement applied.
	Inverted uint32
}

// Variants computes the CRC32 conventions commonly found in peer firmware, so the one a peer
// actually uses can be picked out by comparing against its trailer.
func Variants(payload []byte) []VariantSum {
	leAllOnes := UpdateLE(^uint32(0), payload)
	sums := []VariantSum{
		{Name: "ether_crc", Sum: bits.Reverse32(leAllOnes)},
		{Name: "ether_crc_le", Sum: leAllOnes},
		{Name: "crc32_le(~0)", Sum: leAllOnes},
		{Name: "crc32_be(~0)", Sum: UpdateBE(^uint32(0), payload)},
		{Name: "crc32_le(0)", Sum: UpdateLE(0, payload)},
		{Name: "crc32_be(0)", Sum: UpdateBE(0, payload)},
	}
	for i := range sums {
		sums[i].Inverted = ^sums[i].Sum
	}
	return sums
}
