package car

import "errors"

// Sentinel errors for malformed container input. All of them are fatal
// to the open attempt that encountered them.
var (
	// ErrMalformedVarint is returned when a varint is unterminated or
	// encodes a value that does not fit in 64 bits.
	ErrMalformedVarint = errors.New("car: malformed varint")

	// ErrTruncatedContentID is returned when fewer bytes remain than a
	// content identifier's decoded fields require.
	ErrTruncatedContentID = errors.New("car: truncated content identifier")

	// ErrUnsupportedVersion is returned for content identifier versions
	// other than 0 and 1.
	ErrUnsupportedVersion = errors.New("car: unsupported content identifier version")

	// ErrInvalidHeader is returned when the container header cannot be
	// decoded or declares an unsupported container version.
	ErrInvalidHeader = errors.New("car: invalid container header")

	// ErrMissingRoot is returned when the header declares zero roots.
	ErrMissingRoot = errors.New("car: header declares no roots")

	// ErrTruncatedBlock is returned when a block declares more bytes
	// than remain in the file.
	ErrTruncatedBlock = errors.New("car: truncated block")

	// ErrCorruptBlockLength is returned when a block's declared length
	// is smaller than the content identifier it must carry.
	ErrCorruptBlockLength = errors.New("car: corrupt block length")
)
