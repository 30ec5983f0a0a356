// Package tiletest builds tile container fixtures. The library proper
// is read-only and never writes the format, so the minimal encoder
// tests need lives here.
package tiletest

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"

	"github.com/tiledocs/tile/car"
)

// Multicodec and multihash codes used by fixtures.
const (
	CodecRaw     = 0x55
	CodecDagCBOR = 0x71
	HashSHA2_256 = 0x12
)

// Block pairs a content identifier with the raw data it addresses.
type Block struct {
	ID   car.ContentID
	Data []byte
}

// RawBlock addresses data with a CIDv1 raw / sha2-256 identifier.
func RawBlock(data []byte) Block {
	return block(CodecRaw, data)
}

// CBORBlock CBOR-encodes v and addresses the encoding with a CIDv1
// dag-cbor / sha2-256 identifier.
func CBORBlock(v any) Block {
	data, err := cbor.Marshal(v)
	if err != nil {
		panic("tiletest: encode block: " + err.Error())
	}
	return block(CodecDagCBOR, data)
}

func block(codec uint64, data []byte) Block {
	sum := sha256.Sum256(data)
	return Block{ID: NewContentID(codec, HashSHA2_256, sum[:]), Data: data}
}

// NewContentID assembles a CIDv1 from its fields.
func NewContentID(codec, hashCode uint64, digest []byte) car.ContentID {
	buf := binary.AppendUvarint(nil, 1)
	buf = binary.AppendUvarint(buf, codec)
	buf = binary.AppendUvarint(buf, hashCode)
	buf = binary.AppendUvarint(buf, uint64(len(digest)))
	buf = append(buf, digest...)
	id, _, err := car.DecodeContentID(buf)
	if err != nil {
		panic("tiletest: assemble content identifier: " + err.Error())
	}
	return id
}

// Container assembles a container: a varint-prefixed CBOR header
// declaring the given roots, then one varint-framed block per entry, in
// order.
func Container(roots []car.ContentID, blocks ...Block) []byte {
	links := make([]car.Link, len(roots))
	for i, root := range roots {
		links[i] = car.Link{ID: root}
	}
	header, err := cbor.Marshal(map[string]any{
		"version": 1,
		"roots":   links,
	})
	if err != nil {
		panic("tiletest: encode header: " + err.Error())
	}

	out := binary.AppendUvarint(nil, uint64(len(header)))
	out = append(out, header...)
	for _, b := range blocks {
		id := b.ID.Bytes()
		out = binary.AppendUvarint(out, uint64(len(id)+len(b.Data)))
		out = append(out, id...)
		out = append(out, b.Data...)
	}
	return out
}

// Resource builds a MASL resource map entry referencing id, with the
// given headers flattened alongside the src link.
func Resource(id car.ContentID, headers map[string]string) map[string]any {
	entry := map[string]any{"src": car.Link{ID: id}}
	for name, value := range headers {
		entry[name] = value
	}
	return entry
}
