package car

import (
	"encoding/base32"
	"fmt"
	"math"
)

// CIDv0 identifiers are a bare sha2-256 multihash: code 0x12, digest
// length 0x20, then 32 digest bytes.
const (
	v0HashCode  = 0x12
	v0DigestLen = 0x20
	v0ByteLen   = 2 + v0DigestLen
)

// base32Lower is the multibase base32 alphabet (lowercase, no padding)
// used for the display form of identifiers.
var base32Lower = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// ContentID is a self-describing content identifier: a version varint,
// a content-type code varint, and a multihash (hash-function code
// varint, digest-length varint, digest bytes).
//
// ContentID is an immutable value type backed by the identifier's exact
// encoded bytes. Two identifiers are equal iff their bytes are equal,
// so ContentID compares with == and works directly as a map key. The
// zero value is undefined and matches nothing.
type ContentID struct {
	str string
}

// Defined reports whether the identifier holds decoded bytes.
func (c ContentID) Defined() bool {
	return c.str != ""
}

// Bytes returns a copy of the identifier's encoded bytes.
func (c ContentID) Bytes() []byte {
	return []byte(c.str)
}

// ByteLen returns the encoded length in bytes.
func (c ContentID) ByteLen() int {
	return len(c.str)
}

// KeyString returns the encoded bytes as a string, suitable for use as
// a map or dedup key without allocation.
func (c ContentID) KeyString() string {
	return c.str
}

// String renders the identifier in multibase base32 form ("b" prefix).
// This is a display form only; nothing in this package parses it back.
func (c ContentID) String() string {
	if c.str == "" {
		return ""
	}
	return "b" + base32Lower.EncodeToString([]byte(c.str))
}

// Version returns the identifier's version: 0 for the legacy bare
// multihash form, 1 otherwise.
func (c ContentID) Version() uint64 {
	if isV0([]byte(c.str)) {
		return 0
	}
	v, _, _ := Uvarint([]byte(c.str))
	return v
}

// Multihash returns the hash-function code and digest embedded in the
// identifier. Only valid on identifiers produced by DecodeContentID.
func (c ContentID) Multihash() (uint64, []byte) {
	data := []byte(c.str)
	if isV0(data) {
		return v0HashCode, data[2:]
	}
	pos := 0
	_, n, _ := Uvarint(data) // version
	pos += n
	_, n, _ = Uvarint(data[pos:]) // content-type code
	pos += n
	code, n, _ := Uvarint(data[pos:])
	pos += n
	_, n, _ = Uvarint(data[pos:]) // digest length
	pos += n
	return code, data[pos:]
}

func isV0(data []byte) bool {
	return len(data) == v0ByteLen && data[0] == v0HashCode && data[1] == v0DigestLen
}

// DecodeContentID decodes a content identifier from the start of data,
// returning the identifier and its encoded byte length. The length is
// self-describing: each field is decoded in turn and the consumed bytes
// summed; digests of any length are accepted.
func DecodeContentID(data []byte) (ContentID, int, error) {
	size, err := contentIDSize(data)
	if err != nil {
		return ContentID{}, 0, err
	}
	if len(data) < size {
		return ContentID{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedContentID, size, len(data))
	}
	return ContentID{str: string(data[:size])}, size, nil
}

// contentIDSize decodes the self-describing fields of a content
// identifier and returns its total encoded length. Only the varint
// fields need to be present in data; the digest itself may be absent.
func contentIDSize(data []byte) (int, error) {
	if len(data) >= 2 && data[0] == v0HashCode && data[1] == v0DigestLen {
		return v0ByteLen, nil
	}

	pos := 0
	version, n, err := Uvarint(data)
	if err != nil {
		return 0, fmt.Errorf("content identifier version: %w", err)
	}
	pos += n
	if version != 1 {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if _, n, err = Uvarint(data[pos:]); err != nil {
		return 0, fmt.Errorf("content identifier type code: %w", err)
	}
	pos += n
	if _, n, err = Uvarint(data[pos:]); err != nil {
		return 0, fmt.Errorf("content identifier hash code: %w", err)
	}
	pos += n
	digestLen, n, err := Uvarint(data[pos:])
	if err != nil {
		return 0, fmt.Errorf("content identifier digest length: %w", err)
	}
	pos += n
	if digestLen > math.MaxInt32 {
		return 0, fmt.Errorf("%w: digest length %d not supported", ErrTruncatedContentID, digestLen)
	}
	return pos + int(digestLen), nil
}
