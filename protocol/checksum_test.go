package protocol

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var checkInput = []byte("123456789")

func TestUpdate(t *testing.T) {
	// CRC-32/MPEG-2 check value.
	test.That(t, UpdateBE(ChecksumInitial, checkInput), test.ShouldEqual, uint32(0x0376E6E7))
	test.That(t, UpdateBE(0, checkInput), test.ShouldEqual, uint32(0x89A1897F))
	// crc32_le(~0) is the IEEE check value without its final inversion.
	test.That(t, UpdateLE(ChecksumInitial, checkInput), test.ShouldEqual, uint32(0x340BC6D9))
	test.That(t, ^UpdateLE(ChecksumInitial, checkInput), test.ShouldEqual, uint32(0xCBF43926))
	test.That(t, UpdateLE(0, checkInput), test.ShouldEqual, uint32(0x2DFD2D88))

	// Feeding data in pieces gives the same register as feeding it at once.
	split := UpdateBE(UpdateBE(ChecksumInitial, checkInput[:4]), checkInput[4:])
	test.That(t, split, test.ShouldEqual, UpdateBE(ChecksumInitial, checkInput))
	test.That(t, UpdateBE(0x1234, nil), test.ShouldEqual, uint32(0x1234))
}

func signedBlock(t *testing.T, payload []byte) []byte {
	t.Helper()
	block := make([]byte, len(payload)+TrailerSize)
	copy(block, payload)
	binary.NativeEndian.PutUint32(block[len(payload):], UpdateBE(ChecksumInitial, payload))
	return block
}

func TestValidateZeroBlock(t *testing.T) {
	block := signedBlock(t, make([]byte, 16))
	test.That(t, len(block), test.ShouldEqual, 20)
	test.That(t, binary.NativeEndian.Uint32(block[16:]), test.ShouldEqual, uint32(0x552D22C8))

	val := NewValidator(ChecksumVariant{})
	payload, err := val.Validate(block)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, payload, test.ShouldResemble, make([]byte, 16))

	t.Run("flipped trailer byte", func(t *testing.T) {
		corrupt := append([]byte(nil), block...)
		corrupt[len(corrupt)-1] ^= 0xFF
		payload, err := val.Validate(corrupt)
		test.That(t, payload, test.ShouldBeNil)

		var mismatch *ChecksumMismatchError
		test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
		test.That(t, mismatch.Expected, test.ShouldEqual, uint32(0x552D22C8))
		test.That(t, mismatch.Received, test.ShouldEqual, binary.NativeEndian.Uint32(corrupt[16:]))
		test.That(t, mismatch.Received, test.ShouldNotEqual, mismatch.Expected)
		test.That(t, err.Error(), test.ShouldContainSubstring, "expected 0x552d22c8")
	})

	t.Run("flipped payload byte", func(t *testing.T) {
		corrupt := append([]byte(nil), block...)
		corrupt[3] = 1
		_, err := val.Validate(corrupt)
		var mismatch *ChecksumMismatchError
		test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
		test.That(t, mismatch.Expected, test.ShouldEqual, UpdateBE(ChecksumInitial, corrupt[:16]))
		test.That(t, mismatch.Received, test.ShouldEqual, uint32(0x552D22C8))
	})
}

func TestValidateRandomPayloads(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(1))
	val := NewValidator(ChecksumVariant{})
	for _, n := range []int{0, 1, 15, 16, 1000, 40960} {
		payload := make([]byte, n)
		r.Read(payload)
		block := signedBlock(t, payload)

		got, err := val.Validate(block)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, payload)

		if n == 0 {
			continue
		}
		block[r.Intn(n)] ^= byte(1 << r.Intn(8))
		got, err = val.Validate(block)
		test.That(t, got, test.ShouldBeNil)
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestValidateShortBlock(t *testing.T) {
	val := NewValidator(ChecksumVariant{})
	_, err := val.Validate([]byte{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "too short")

	var mismatch *ChecksumMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeFalse)
}

func TestChecksumVariants(t *testing.T) {
	zero := uint32(0)
	for _, tc := range []struct {
		variant ChecksumVariant
		want    uint32
		order   binary.ByteOrder
	}{
		{ChecksumVariant{}, 0x0376E6E7, binary.NativeEndian},
		{ChecksumVariant{Algorithm: AlgorithmBE, Initial: &zero}, 0x89A1897F, binary.NativeEndian},
		{ChecksumVariant{FinalXOR: true}, ^uint32(0x0376E6E7), binary.NativeEndian},
		{ChecksumVariant{Algorithm: AlgorithmLE, FinalXOR: true, TrailerOrder: TrailerLittle}, 0xCBF43926, binary.LittleEndian},
		{ChecksumVariant{Algorithm: AlgorithmLE, TrailerOrder: TrailerBig}, 0x340BC6D9, binary.BigEndian},
	} {
		t.Run(tc.variant.String(), func(t *testing.T) {
			test.That(t, tc.variant.Validate("checksum"), test.ShouldBeNil)
			test.That(t, tc.variant.Sum(checkInput), test.ShouldEqual, tc.want)

			block := make([]byte, len(checkInput)+TrailerSize)
			copy(block, checkInput)
			test.That(t, tc.variant.Sign(block), test.ShouldBeNil)
			test.That(t, tc.order.Uint32(block[len(checkInput):]), test.ShouldEqual, tc.want)

			payload, err := NewValidator(tc.variant).Validate(block)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, payload, test.ShouldResemble, checkInput)
		})
	}

	test.That(t, ChecksumVariant{}.String(), test.ShouldEqual,
		"crc32_be(init=0xffffffff, final_xor=false, trailer=native)")
	test.That(t, ChecksumVariant{}.Sign([]byte{1}), test.ShouldNotBeNil)
}

func TestChecksumVariantValidate(t *testing.T) {
	v := ChecksumVariant{Algorithm: "crc16"}
	err := v.Validate("path.checksum")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "path.checksum")
	test.That(t, err.Error(), test.ShouldContainSubstring, "crc16")

	v = ChecksumVariant{TrailerOrder: "middle"}
	err = v.Validate("path.checksum")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "middle")
}

func TestVariants(t *testing.T) {
	sums := Variants(checkInput)
	test.That(t, sums, test.ShouldHaveLength, 6)

	byName := map[string]VariantSum{}
	for _, s := range sums {
		test.That(t, s.Inverted, test.ShouldEqual, ^s.Sum)
		byName[s.Name] = s
	}
	test.That(t, byName["ether_crc"].Sum, test.ShouldEqual, uint32(0x9B63D02C))
	test.That(t, byName["ether_crc_le"].Sum, test.ShouldEqual, uint32(0x340BC6D9))
	test.That(t, byName["crc32_le(~0)"].Sum, test.ShouldEqual, uint32(0x340BC6D9))
	test.That(t, byName["crc32_be(~0)"].Sum, test.ShouldEqual, uint32(0x0376E6E7))
	test.That(t, byName["crc32_le(0)"].Sum, test.ShouldEqual, uint32(0x2DFD2D88))
	test.That(t, byName["crc32_be(0)"].Sum, test.ShouldEqual, uint32(0x89A1897F))
}
