package car

import "fmt"

// maxVarintLen is the longest LEB128 encoding of a 64-bit value.
const maxVarintLen = 10

// Uvarint decodes an unsigned LEB128 integer from the start of data,
// returning the value and the number of bytes consumed.
//
// Fails with ErrMalformedVarint when data ends before a terminating
// byte (high bit clear) or when the encoded value overflows 64 bits.
func Uvarint(data []byte) (uint64, int, error) {
	var value uint64
	var shift uint
	for i, b := range data {
		if i == maxVarintLen-1 && b > 1 {
			// The tenth byte may only contribute bit 63.
			return 0, 0, fmt.Errorf("%w: value overflows 64 bits", ErrMalformedVarint)
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("%w: unterminated after %d bytes", ErrMalformedVarint, len(data))
}
