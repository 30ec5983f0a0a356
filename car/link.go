package car

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// linkTagNumber is the CBOR tag for content links in dag-cbor documents.
const linkTagNumber = 42

// identityMultibasePrefix is the marker byte carried inside a tag-42
// byte string, ahead of the raw content identifier.
const identityMultibasePrefix = 0x00

// Link is a content link as embedded in structured-binary documents:
// CBOR tag 42 wrapping a byte string of the identity-prefix marker
// followed by the identifier's raw bytes. It implements cbor.Marshaler
// and cbor.Unmarshaler so link fields decode directly into typed
// identifiers instead of opaque byte blobs.
type Link struct {
	ID ContentID
}

// MarshalCBOR encodes the link as tag 42 over the prefixed identifier bytes.
func (l Link) MarshalCBOR() ([]byte, error) {
	if !l.ID.Defined() {
		return nil, errors.New("car: cannot encode undefined content link")
	}
	content := make([]byte, 0, l.ID.ByteLen()+1)
	content = append(content, identityMultibasePrefix)
	content = append(content, l.ID.Bytes()...)
	return cbor.Marshal(cbor.Tag{Number: linkTagNumber, Content: content})
}

// UnmarshalCBOR decodes a tag-42 link, stripping the identity-prefix
// marker when present and reinterpreting the remainder as a content
// identifier.
func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.RawTag
	if err := tag.UnmarshalCBOR(data); err != nil {
		return fmt.Errorf("car: content link: %w", err)
	}
	if tag.Number != linkTagNumber {
		return fmt.Errorf("car: content link: unexpected CBOR tag %d", tag.Number)
	}
	var raw []byte
	if err := cbor.Unmarshal(tag.Content, &raw); err != nil {
		return fmt.Errorf("car: content link: %w", err)
	}
	if len(raw) > 0 && raw[0] == identityMultibasePrefix {
		raw = raw[1:]
	}
	id, n, err := DecodeContentID(raw)
	if err != nil {
		return fmt.Errorf("car: content link: %w", err)
	}
	if n != len(raw) {
		return fmt.Errorf("car: content link: %d trailing bytes after content identifier", len(raw)-n)
	}
	l.ID = id
	return nil
}
