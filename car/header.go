package car

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Header is the decoded container header: the format version and the
// declared root identifiers. The first root addresses the block that
// carries the container's manifest.
type Header struct {
	Version uint64
	Roots   []ContentID
}

// Root returns the first declared root. Only valid on headers returned
// by Scan, which guarantees at least one root.
func (h *Header) Root() ContentID {
	return h.Roots[0]
}

func decodeHeader(data []byte) (*Header, error) {
	var doc struct {
		Version uint64 `cbor:"version"`
		Roots   []Link `cbor:"roots"`
	}
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("%w: container version %d", ErrInvalidHeader, doc.Version)
	}
	if len(doc.Roots) == 0 {
		return nil, ErrMissingRoot
	}
	roots := make([]ContentID, len(doc.Roots))
	for i, link := range doc.Roots {
		roots[i] = link.ID
	}
	return &Header{Version: doc.Version, Roots: roots}, nil
}
