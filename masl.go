package tile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/tiledocs/tile/car"
)

// Header is one declared header on a resource entry, attached verbatim
// to the bytes served for that resource.
type Header struct {
	Name  string
	Value string
}

// Icon describes one entry of the manifest's icon list.
type Icon struct {
	Src     string `cbor:"src"`
	Sizes   string `cbor:"sizes"`
	Purpose string `cbor:"purpose"`
}

// Resource maps a manifest path to the block holding its bytes, plus
// the headers to attach when serving them.
type Resource struct {
	Src     car.ContentID
	Headers []Header
}

// Header returns the value of the named header, matched case-insensitively.
func (r *Resource) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// UnmarshalCBOR decodes a resource entry. The "src" field is a tagged
// content link; every other string-valued field is carried as a header,
// name-sorted so repeated decodes iterate identically. Non-string
// fields are ignored.
func (r *Resource) UnmarshalCBOR(data []byte) error {
	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("resource entry: %w", err)
	}
	raw, ok := fields["src"]
	if !ok {
		return fmt.Errorf("resource entry: missing src")
	}
	var link car.Link
	if err := cbor.Unmarshal(raw, &link); err != nil {
		return fmt.Errorf("resource entry src: %w", err)
	}
	headers := make([]Header, 0, len(fields)-1)
	for name, value := range fields {
		if name == "src" {
			continue
		}
		var s string
		if err := cbor.Unmarshal(value, &s); err != nil {
			continue
		}
		headers = append(headers, Header{Name: name, Value: s})
	}
	slices.SortFunc(headers, func(a, b Header) int {
		return strings.Compare(a.Name, b.Name)
	})
	r.Src = link.ID
	r.Headers = headers
	return nil
}

// Manifest (MASL) describes an opened tile: display metadata plus the
// map from rooted resource paths to content entries. Decoded once at
// open time and immutable thereafter.
type Manifest struct {
	Name            string              `cbor:"name"`
	Description     string              `cbor:"description"`
	ShortName       string              `cbor:"short_name"`
	ThemeColor      string              `cbor:"theme_color"`
	BackgroundColor string              `cbor:"background_color"`
	Icons           []Icon              `cbor:"icons"`
	Resources       map[string]Resource `cbor:"resources"`
}

// decodeManifest performs a positioned read of the root block and
// decodes it into a Manifest. The resources map is required and every
// path in it must be rooted; name and icons default to empty.
func decodeManifest(src ByteSource, index *car.Index, root car.ContentID, maxSize uint64) (*Manifest, error) {
	loc, ok := index.Lookup(root)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotIndexed, root)
	}
	if maxSize > 0 && loc.Length > maxSize {
		return nil, fmt.Errorf("%w: manifest block of %d bytes", ErrBlockTooLarge, loc.Length)
	}
	data := make([]byte, loc.Length)
	if err := readFullAt(src, data, int64(loc.Offset)); err != nil {
		return nil, fmt.Errorf("read manifest block: %w", err)
	}
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Resources == nil {
		return nil, fmt.Errorf("%w: missing resources", ErrInvalidManifest)
	}
	for path := range m.Resources {
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("%w: resource path %q is not rooted", ErrInvalidManifest, path)
		}
	}
	return &m, nil
}
