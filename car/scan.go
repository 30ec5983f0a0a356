package car

import (
	"errors"
	"fmt"
	"io"
)

// cidPrefixLen is enough bytes to decode every varint field of a
// content identifier: four varints of at most ten bytes each.
const cidPrefixLen = 40

// Scan reads a container from src in a single linear pass: it decodes
// the header, then walks the block sequence recording each identifier's
// data range in the index. Block payloads are never loaded; the scan
// advances past them by arithmetic alone, so memory stays O(1) beyond
// the index itself.
//
// Reaching end of file exactly at a block boundary is success. A block
// length of zero terminates the sequence early, matching writers that
// pad their output.
func Scan(src io.ReaderAt, size int64) (*Header, *Index, error) {
	pos := int64(0)

	headerLen, n, err := uvarintAt(src, size, pos)
	if err != nil {
		return nil, nil, fmt.Errorf("container header length: %w", err)
	}
	pos += int64(n)
	if headerLen > uint64(size-pos) {
		return nil, nil, fmt.Errorf("%w: header of %d bytes exceeds file size", ErrInvalidHeader, headerLen)
	}
	headerBytes := make([]byte, headerLen)
	if err := readFullAt(src, headerBytes, pos); err != nil {
		return nil, nil, fmt.Errorf("container header: %w", err)
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		return nil, nil, err
	}
	pos += int64(headerLen)

	index := newIndex()
	for pos < size {
		blockLen64, n, err := uvarintAt(src, size, pos)
		if err != nil {
			return nil, nil, fmt.Errorf("block length at offset %d: %w", pos, err)
		}
		pos += int64(n)
		if blockLen64 == 0 {
			break
		}
		if blockLen64 > uint64(size-pos) {
			return nil, nil, fmt.Errorf("%w: block of %d bytes at offset %d exceeds file size", ErrTruncatedBlock, blockLen64, pos)
		}
		blockLen := int64(blockLen64)

		prefix := make([]byte, min(blockLen, cidPrefixLen))
		if err := readFullAt(src, prefix, pos); err != nil {
			return nil, nil, fmt.Errorf("block at offset %d: %w", pos, err)
		}
		cidLen, err := contentIDSize(prefix)
		if err != nil {
			if blockLen <= cidPrefixLen {
				// The whole block is in the prefix: it does not hold a
				// complete content identifier.
				return nil, nil, fmt.Errorf("%w: block of %d bytes at offset %d", ErrCorruptBlockLength, blockLen, pos)
			}
			return nil, nil, fmt.Errorf("block at offset %d: %w", pos, err)
		}
		if int64(cidLen) > blockLen {
			return nil, nil, fmt.Errorf("%w: content identifier of %d bytes in block of %d bytes at offset %d", ErrCorruptBlockLength, cidLen, blockLen, pos)
		}

		cidBytes := prefix
		if cidLen > len(prefix) {
			cidBytes = make([]byte, cidLen)
			if err := readFullAt(src, cidBytes, pos); err != nil {
				return nil, nil, fmt.Errorf("block at offset %d: %w", pos, err)
			}
		}
		id, _, err := DecodeContentID(cidBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("block at offset %d: %w", pos, err)
		}

		index.add(id, BlockLocation{
			Offset: uint64(pos) + uint64(cidLen),
			Length: uint64(blockLen) - uint64(cidLen),
		})
		pos += blockLen
	}

	return header, index, nil
}

// uvarintAt decodes a varint at offset pos, reading at most the bytes
// that remain before size.
func uvarintAt(src io.ReaderAt, size, pos int64) (uint64, int, error) {
	if pos >= size {
		return 0, 0, fmt.Errorf("%w: no bytes at offset %d", ErrMalformedVarint, pos)
	}
	buf := make([]byte, min(int64(maxVarintLen), size-pos))
	if err := readFullAt(src, buf, pos); err != nil {
		return 0, 0, err
	}
	return Uvarint(buf)
}

// readFullAt reads exactly len(buf) bytes at off.
func readFullAt(src io.ReaderAt, buf []byte, off int64) error {
	n, err := src.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}
